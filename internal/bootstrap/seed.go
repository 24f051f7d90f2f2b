package bootstrap

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
)

type SeederHasher interface {
	Hash(password string) (string, error)
}

// SeedAdmin creates an ACTIVE admin account for local setups. An existing
// account with that email is left alone so restarts are safe.
func SeedAdmin(ctx context.Context, store account.AccountStore, hasher SeederHasher, email, password string) error {
	email = domain.NormalizeEmail(email)
	if err := domain.CheckPassword(password); err != nil {
		return err
	}

	if _, err := store.FindByEmail(ctx, email); err == nil {
		logger.Logger.Info().Msg("[seed] admin already present")
		return nil
	} else if !domain.Is(err, "account_not_found") {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return domain.ErrHashFailed(err)
	}

	acc := domain.NewAccount(uuid.NewString(), "Admin", email, domain.OTP{}, time.Now().UTC())
	acc.IsOtpVerified = true
	if err := acc.CompleteRegistration(hash); err != nil {
		return err
	}
	acc.Role = domain.RoleAdmin
	if err := acc.CheckInvariants(); err != nil {
		return err
	}

	if _, err := store.Create(ctx, acc); err != nil {
		if domain.Is(err, "email_in_use") {
			return nil
		}
		return err
	}

	logger.Logger.Info().Str("account_id", acc.ID).Msg("[seed] admin account created")
	return nil
}
