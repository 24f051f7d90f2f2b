package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// StartSignup creates an UNVERIFIED account or resumes an abandoned signup.
// Re-entry while UNVERIFIED replaces the live code, so only the newest one verifies.
func (s *Service) StartSignup(ctx context.Context, name, email string) (FlowResult, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.signup.start", map[string]string{"email": email})

	if name == "" {
		return FlowResult{}, domain.ErrMissingField("name")
	}
	if email == "" {
		return FlowResult{}, domain.ErrMissingField("email")
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		res, err := s.startSignupOnce(ctx, name, email)
		if err == nil {
			audit("success", nil, map[string]string{
				"account_id": res.Account.ID,
				"status":     string(res.Status),
			})
			return res, nil
		}
		// Lost a race against a concurrent signup or resend: re-read and decide again.
		if domain.Is(err, "version_conflict") || domain.Is(err, "email_in_use") {
			lastErr = err
			continue
		}
		audit("error", err, nil)
		return FlowResult{}, err
	}
	audit("error", lastErr, nil)
	return FlowResult{}, lastErr
}

func (s *Service) startSignupOnce(ctx context.Context, name, email string) (FlowResult, error) {
	acc, err := s.store.FindByEmail(ctx, email)
	state := domain.StateNew
	switch {
	case err == nil:
		state = acc.State()
	case domain.Is(err, "account_not_found"):
	default:
		return FlowResult{}, err
	}

	switch state {
	case domain.StateNew:
		otp, err := s.otps.Generate(domain.PurposeSignup)
		if err != nil {
			return FlowResult{}, err
		}
		acc = domain.NewAccount(s.newID(), name, email, otp, s.now())
		if err := acc.CheckInvariants(); err != nil {
			return FlowResult{}, err
		}
		created, err := s.store.Create(ctx, acc)
		if err != nil {
			return FlowResult{}, err
		}
		s.notifyBestEffort(ctx, created, otp)
		return FlowResult{Status: StatusUnverified, Account: created}, nil

	case domain.StateUnverified:
		otp, err := s.otps.Generate(domain.PurposeSignup)
		if err != nil {
			return FlowResult{}, err
		}
		acc.IssueOTP(otp)
		saved, err := s.save(ctx, acc)
		if err != nil {
			return FlowResult{}, err
		}
		s.notifyBestEffort(ctx, saved, otp)
		return FlowResult{Status: StatusUnverified, Account: saved}, nil

	case domain.StatePendingPassword:
		return FlowResult{Status: StatusPendingPassword, Account: acc}, nil

	case domain.StateActive:
		return FlowResult{}, domain.ErrAlreadyRegistered()
	}
	return FlowResult{}, domain.ErrInternal(fmt.Errorf("signup: unhandled state %s", state))
}

// VerifyInitialOtp confirms the signup code and moves the account to PENDING_PASSWORD.
func (s *Service) VerifyInitialOtp(ctx context.Context, email, otp string) (FlowResult, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.signup.verify_otp", map[string]string{"email": email})

	acc, err := s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		if err := a.ConfirmSignupOTP(otp, s.now()); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return FlowResult{}, err
	}

	audit("success", nil, map[string]string{"account_id": acc.ID})
	return FlowResult{Status: StatusPendingPassword, Account: acc}, nil
}

// CompleteRegistration sets the first password and activates the account.
func (s *Service) CompleteRegistration(ctx context.Context, email, password string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.signup.complete", map[string]string{"email": email})

	if err := domain.CheckPassword(password); err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}
	if err := registrationAllowed(acc); err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, domain.ErrHashFailed(err)
	}

	acc, err = s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		if err := registrationAllowed(*a); err != nil {
			return false, err
		}
		return true, a.CompleteRegistration(hash)
	})
	if err != nil {
		audit("error", err, nil)
		return domain.Account{}, err
	}

	audit("success", nil, map[string]string{"account_id": acc.ID})
	return acc, nil
}

// registrationAllowed guards the password step. An ACTIVE account must use the
// reset flow; otherwise anyone knowing the email could overwrite its password.
func registrationAllowed(a domain.Account) error {
	switch a.State() {
	case domain.StateUnverified:
		return domain.ErrOTPNotVerified()
	case domain.StateActive:
		return domain.ErrAlreadyVerified()
	}
	return nil
}

// ResendInitialOtp issues a new signup code for an account that is not yet verified.
func (s *Service) ResendInitialOtp(ctx context.Context, email string) (FlowResult, error) {
	email = domain.NormalizeEmail(email)
	audit := s.auditor("account.signup.resend_otp", map[string]string{"email": email})

	var issued domain.OTP
	acc, err := s.mutate(ctx, s.byEmail(email), func(a *domain.Account) (bool, error) {
		if a.IsVerified {
			return false, domain.ErrAlreadyVerified()
		}
		otp, err := s.otps.Generate(domain.PurposeSignup)
		if err != nil {
			return false, err
		}
		a.IssueOTP(otp)
		issued = otp
		return true, nil
	})
	if err != nil {
		audit("error", err, nil)
		return FlowResult{}, err
	}

	s.notifyBestEffort(ctx, acc, issued)
	audit("success", nil, map[string]string{"account_id": acc.ID})
	return FlowResult{Status: statusOf(acc), Account: acc}, nil
}
