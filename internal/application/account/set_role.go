package account

import (
	"context"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

func (s *Service) SetRole(
	ctx context.Context,
	actorID, actorRole, targetID, newRole string,
) (domain.Account, error) {
	actorID = strings.TrimSpace(actorID)
	actorRole = strings.TrimSpace(actorRole)
	targetID = strings.TrimSpace(targetID)
	newRole = strings.TrimSpace(newRole)

	audit := s.auditor("admin.set_role", map[string]string{
		"actor_id":   actorID,
		"actor_role": actorRole,
		"target_id":  targetID,
	})

	// --- input validation ---
	if targetID == "" {
		err := domain.ErrMissingField("account_id")
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if !domain.IsValidRole(newRole) {
		err := domain.ErrInvalidRole(newRole)
		audit("error", err, nil)
		return domain.Account{}, err
	}

	// --- RBAC: admin only (the router checks this too) ---
	if domain.RoleRank(actorRole) < domain.RoleRank(string(domain.RoleAdmin)) {
		err := domain.ErrInsufficientRole(string(domain.RoleAdmin))
		audit("error", err, nil)
		return domain.Account{}, err
	}

	if actorID != "" && actorID == targetID {
		err := domain.ErrCannotAffectSelf()
		audit("error", err, nil)
		return domain.Account{}, err
	}

	var oldRole domain.Role
	acc, err := s.mutate(ctx, s.byID(targetID), func(a *domain.Account) (bool, error) {
		oldRole = a.Role
		if string(a.Role) == newRole {
			return false, nil
		}
		// --- protect last admin ---
		if a.Role == domain.RoleAdmin {
			cnt, err := s.store.CountByRole(ctx, domain.RoleAdmin)
			if err != nil {
				return false, err
			}
			if cnt <= 1 {
				return false, domain.ErrLastAdminProtected()
			}
		}
		a.Role = domain.Role(newRole)
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	audit("success", nil, map[string]string{
		"old_role": string(oldRole),
		"new_role": newRole,
	})
	return acc, nil
}
