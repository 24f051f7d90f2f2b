package account

import (
	"context"
	"fmt"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// Login authenticates an ACTIVE account, or routes a stalled signup back to its
// next step. Unknown emails and wrong passwords produce the same error.
//
// otp is optional; when present for an UNVERIFIED account it completes the
// signup verification inline.
func (s *Service) Login(ctx context.Context, email, password, otp string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.login", map[string]string{"email": email})

	if email == "" {
		err := domain.ErrInvalidCredentials()
		audit("error", err, nil)
		return LoginResult{}, err
	}

	var (
		status Status
		issued domain.OTP
	)
	acc, err := s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		status, issued = "", domain.OTP{}

		switch a.State() {
		case domain.StateUnverified:
			if otp != "" {
				if err := a.ConfirmSignupOTP(otp, s.now()); err != nil {
					return false, err
				}
				status = StatusPendingPassword
				return true, nil
			}
			code, err := s.otps.Generate(domain.PurposeSignup)
			if err != nil {
				return false, err
			}
			a.IssueOTP(code)
			issued = code
			status = StatusUnverified
			return true, nil

		case domain.StatePendingPassword:
			status = StatusPendingPassword
			return false, nil

		case domain.StateActive:
			return false, nil
		}
		return false, domain.ErrInternal(fmt.Errorf("login: unhandled state %s", a.State()))
	})
	if err != nil {
		if domain.Is(err, "account_not_found") {
			err = domain.ErrInvalidCredentials()
		}
		audit("error", err, nil)
		return LoginResult{}, err
	}

	if status != "" {
		if !issued.IsZero() {
			s.notifyBestEffort(ctx, acc, issued)
		}
		audit("incomplete", nil, map[string]string{
			"account_id": acc.ID,
			"status":     string(status),
		})
		return LoginResult{Status: status, Account: acc}, nil
	}

	if password == "" || s.hasher.Compare(acc.PasswordHash, password) != nil {
		err := domain.ErrInvalidCredentials()
		audit("error", err, map[string]string{"account_id": acc.ID})
		return LoginResult{}, err
	}

	res, err := s.issueToken(acc)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acc.ID})
		return LoginResult{}, err
	}

	audit("success", nil, map[string]string{"account_id": acc.ID})
	return res, nil
}
