package account

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Service) GetMe(ctx context.Context, accountID string) (domain.Account, error) {
	return s.store.FindByID(ctx, accountID)
}

// UpdateProfile changes the display name. Email is changed through RequestEmailChange only.
func (s *Service) UpdateProfile(ctx context.Context, accountID, name string) (domain.Account, error) {
	name = strings.TrimSpace(name)
	audit := s.auditor("account.profile.update", map[string]string{"account_id": accountID})

	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		err := domain.ErrInvalidField("name", "must be 2-50 characters")
		audit("error", err, nil)
		return domain.Account{}, err
	}

	acc, err := s.mutate(ctx, s.byID(accountID), func(a *domain.Account) (bool, error) {
		if a.Name == name {
			return false, nil
		}
		a.Name = name
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}
	audit("success", nil, nil)
	return acc, nil
}

func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}
