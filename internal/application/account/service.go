package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const (
	defaultTokenTTL    = 7 * 24 * time.Hour
	defaultMaxAttempts = 3
)

type Service struct {
	store    AccountStore
	hasher   PasswordHasher
	otps     OTPGenerator
	notifier Notifier
	signer   TokenSigner

	tokenTTL    time.Duration
	maxAttempts int

	now   func() time.Time
	newID func() string
	audit func(action string, fields map[string]string)
	log   zerolog.Logger
}

type Config struct {
	TokenTTL time.Duration
	// MaxAttempts bounds the optimistic retry loop per operation.
	MaxAttempts int
}

func NewService(
	store AccountStore,
	hasher PasswordHasher,
	otps OTPGenerator,
	notifier Notifier,
	signer TokenSigner,
	cfg Config,
) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Service{
		store:    store,
		hasher:   hasher,
		otps:     otps,
		notifier: notifier,
		signer:   signer,

		tokenTTL:    ttl,
		maxAttempts: attempts,

		now:   time.Now,
		newID: uuid.NewString,
		audit: func(string, map[string]string) {},
		log:   zlog.Logger,
	}
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

func (s *Service) WithLogger(lg zerolog.Logger) *Service {
	s.log = lg.With().Str("component", "account_service").Logger()
	return s
}

// WithClock replaces the clock used for OTP expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Status is the signup sub-state reported to clients.
type Status string

const (
	StatusUnverified      Status = "unverified"
	StatusPendingPassword Status = "pending_password"
)

type FlowResult struct {
	Status  Status
	Account domain.Account
}

type LoginResult struct {
	// Status is set when the account still has to finish signup; Token is empty then.
	Status    Status
	Account   domain.Account
	Token     string
	ExpiresIn int64 // seconds
}

func (r LoginResult) Authenticated() bool { return r.Token != "" }

// decideFunc mutates a loaded account in place. Returning changed=false skips the write.
type decideFunc func(a *domain.Account) (changed bool, err error)

type loadFunc func(ctx context.Context) (domain.Account, error)

func (s *Service) byEmail(email string) loadFunc {
	return func(ctx context.Context) (domain.Account, error) {
		return s.store.FindByEmail(ctx, email)
	}
}

func (s *Service) byID(id string) loadFunc {
	return func(ctx context.Context) (domain.Account, error) {
		return s.store.FindByID(ctx, id)
	}
}

// mutate runs one read-decide-write cycle against a single account and retries
// it from a fresh read when the conditional write loses a race.
func (s *Service) mutate(ctx context.Context, load loadFunc, decide decideFunc) (domain.Account, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		acc, err := load(ctx)
		if err != nil {
			return domain.Account{}, err
		}

		changed, err := decide(&acc)
		if err != nil {
			return domain.Account{}, err
		}
		if !changed {
			return acc, nil
		}

		saved, err := s.save(ctx, acc)
		if err == nil {
			return saved, nil
		}
		if !domain.Is(err, "version_conflict") {
			return domain.Account{}, err
		}
		lastErr = err
		s.log.Debug().Str("account_id", acc.ID).Int("attempt", attempt+1).Msg("version conflict, retrying")
	}
	return domain.Account{}, lastErr
}

func (s *Service) save(ctx context.Context, acc domain.Account) (domain.Account, error) {
	if err := acc.CheckInvariants(); err != nil {
		return domain.Account{}, err
	}
	acc.UpdatedAt = s.now()
	return s.store.Save(ctx, acc)
}

// notifyBestEffort delivers a code after the transition has committed.
// A delivery failure is logged and dropped; the caller's outcome does not change.
func (s *Service) notifyBestEffort(ctx context.Context, acc domain.Account, otp domain.OTP) {
	err := s.notifier.SendCode(ctx, codeMessage(acc, acc.Email, otp))
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("account_id", acc.ID).
			Str("purpose", string(otp.Purpose)).
			Msg("otp delivery failed")
	}
}

func codeMessage(acc domain.Account, to string, otp domain.OTP) CodeMessage {
	return CodeMessage{
		AccountID: acc.ID,
		To:        to,
		Name:      acc.Name,
		Code:      otp.Code,
		Purpose:   otp.Purpose,
		ExpiresAt: otp.ExpiresAt,
	}
}

func statusOf(acc domain.Account) Status {
	if acc.State() == domain.StateUnverified {
		return StatusUnverified
	}
	return StatusPendingPassword
}

func (s *Service) issueToken(acc domain.Account) (LoginResult, error) {
	tok, err := s.signer.SignAccessToken(acc.ID, string(acc.Role), s.tokenTTL)
	if err != nil {
		return LoginResult{}, domain.ErrTokenSignFailed(err)
	}
	return LoginResult{
		Account:   acc,
		Token:     tok,
		ExpiresIn: int64(s.tokenTTL.Seconds()),
	}, nil
}

// auditor returns a closure that records one action with shared base fields.
func (s *Service) auditor(action string, base map[string]string) func(result string, err error, extra map[string]string) {
	return func(result string, err error, extra map[string]string) {
		fields := make(map[string]string, len(base)+len(extra)+2)
		for k, v := range base {
			fields[k] = v
		}
		fields["result"] = result
		if err != nil {
			fields["error_code"] = domain.Code(err)
		}
		for k, v := range extra {
			fields[k] = v
		}
		s.audit(action, fields)
	}
}
