package account

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// RequestReset issues a password-reset code when the email belongs to an ACTIVE
// account. The returned error never depends on whether the account exists: once
// the lookup succeeds, later failures are logged and swallowed.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.password_reset.request", map[string]string{"email": email})

	if email == "" {
		return nil
	}

	if _, err := s.store.FindByEmail(ctx, email); err != nil {
		if domain.Is(err, "account_not_found") {
			audit("ignored", nil, map[string]string{"reason": "not_found"})
			return nil
		}
		audit("error", err, nil)
		return err
	}

	var issued domain.OTP
	acc, err := s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		issued = domain.OTP{}
		if a.State() != domain.StateActive {
			return false, nil
		}
		otp, err := s.otps.Generate(domain.PurposePasswordReset)
		if err != nil {
			return false, err
		}
		a.IssueOTP(otp)
		issued = otp
		return true, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("password reset request dropped")
		audit("error", err, nil)
		return nil
	}
	if issued.IsZero() {
		audit("ignored", nil, map[string]string{"account_id": acc.ID, "reason": "not_active"})
		return nil
	}

	s.notifyBestEffort(ctx, acc, issued)
	audit("success", nil, map[string]string{"account_id": acc.ID})
	return nil
}

// ConfirmReset replaces the password of an account holding a live reset code.
func (s *Service) ConfirmReset(ctx context.Context, email, otp, newPassword string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.password_reset.confirm", map[string]string{"email": email})

	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if !acc.OTP.Matches(otp, domain.PurposePasswordReset, s.now()) {
		err := domain.ErrInvalidOrExpiredOTP()
		audit("error", err, map[string]string{"account_id": acc.ID})
		return domain.Account{}, err
	}
	if err := domain.CheckPassword(newPassword); err != nil {
		audit("error", err, map[string]string{"account_id": acc.ID})
		return domain.Account{}, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		audit("error", err, map[string]string{"account_id": acc.ID})
		return domain.Account{}, domain.ErrHashFailed(err)
	}

	acc, err = s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		// The code may have been consumed or replaced since the first read.
		if !a.OTP.Matches(otp, domain.PurposePasswordReset, s.now()) {
			return false, domain.ErrInvalidOrExpiredOTP()
		}
		a.ReplacePassword(hash)
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	audit("success", nil, map[string]string{"account_id": acc.ID})
	return acc, nil
}
