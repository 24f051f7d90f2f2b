package account

import (
	"context"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// RequestEmailChange stages newEmail and sends a dedicated code to it.
// Unlike the signup codes this send is synchronous: if it fails the staged
// change is rolled back and the error is returned.
func (s *Service) RequestEmailChange(ctx context.Context, accountID, newEmail string) error {
	newEmail = domain.NormalizeEmail(newEmail)
	audit := s.auditor("account.email_change.request", map[string]string{
		"account_id": accountID,
		"new_email":  newEmail,
	})

	if newEmail == "" {
		err := domain.ErrMissingField("email")
		audit("error", err, nil)
		return err
	}

	var issued domain.OTP
	acc, err := s.mutate(ctx, s.byID(accountID), func(a *domain.Account) (bool, error) {
		issued = domain.OTP{}
		if newEmail == a.Email {
			return false, domain.ErrSameEmail()
		}
		other, err := s.store.FindByEmail(ctx, newEmail)
		switch {
		case err == nil && other.ID != a.ID:
			return false, domain.ErrEmailInUse()
		case err != nil && !domain.Is(err, "account_not_found"):
			return false, err
		}

		otp, err := s.otps.Generate(domain.PurposeEmailChange)
		if err != nil {
			return false, err
		}
		a.RequestEmailChange(newEmail, otp)
		issued = otp
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return err
	}

	if err := s.notifier.SendCode(ctx, codeMessage(acc, newEmail, issued)); err != nil {
		s.rollbackEmailChange(ctx, accountID, issued)
		derr := domain.ErrNotificationFailed(err)
		audit("error", derr, nil)
		return derr
	}

	audit("success", nil, nil)
	return nil
}

// rollbackEmailChange withdraws a staged change whose code never left the building,
// unless a newer request already replaced it.
func (s *Service) rollbackEmailChange(ctx context.Context, accountID string, issued domain.OTP) {
	_, err := s.mutate(ctx, s.byID(accountID), func(a *domain.Account) (bool, error) {
		if !a.HasPendingEmailChange() || a.EmailChangeOTP.Code != issued.Code {
			return false, nil
		}
		a.CancelEmailChange()
		return true, nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("email change rollback failed")
	}
}

// ConfirmEmailChange swaps the account email for the staged one.
func (s *Service) ConfirmEmailChange(ctx context.Context, accountID, otp string) (domain.Account, error) {
	audit := s.auditor("account.email_change.confirm", map[string]string{"account_id": accountID})

	acc, err := s.mutate(ctx, s.byID(accountID), func(a *domain.Account) (bool, error) {
		return true, a.ConfirmEmailChange(otp, s.now())
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	audit("success", nil, map[string]string{"email": acc.Email})
	return acc, nil
}

// CancelEmailChange drops any staged change. It is a no-op when none exists.
func (s *Service) CancelEmailChange(ctx context.Context, accountID string) error {
	audit := s.auditor("account.email_change.cancel", map[string]string{"account_id": accountID})

	_, err := s.mutate(ctx, s.byID(accountID), func(a *domain.Account) (bool, error) {
		if !a.HasPendingEmailChange() {
			return false, nil
		}
		a.CancelEmailChange()
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return err
	}
	audit("success", nil, nil)
	return nil
}
