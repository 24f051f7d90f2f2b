package account

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// AccountStore persists whole account records.
// Save is a compare-and-swap on Account.Version and returns domain.ErrVersionConflict
// when the stored record moved on. Email uniqueness is enforced by the store and
// surfaces as domain.ErrEmailInUse.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	FindByID(ctx context.Context, id string) (domain.Account, error)
	Create(ctx context.Context, a domain.Account) (domain.Account, error)
	Save(ctx context.Context, a domain.Account) (domain.Account, error)

	List(ctx context.Context, limit, offset int) ([]domain.Account, error)
	CountByRole(ctx context.Context, role domain.Role) (int, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error
}

// OTPGenerator returns a fresh 6-digit code expiring domain.OTPTTL from now.
type OTPGenerator interface {
	Generate(purpose domain.OTPPurpose) (domain.OTP, error)
}

// CodeMessage is one verification code addressed to one mailbox.
type CodeMessage struct {
	AccountID string
	To        string
	Name      string
	Code      string
	Purpose   domain.OTPPurpose
	ExpiresAt time.Time
}

type Notifier interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

type TokenSigner interface {
	SignAccessToken(accountID string, role string, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (TokenClaims, error)
}

type TokenClaims struct {
	AccountID string
	Role      string
	Exp       time.Time
}
