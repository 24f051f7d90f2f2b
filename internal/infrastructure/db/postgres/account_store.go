package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const uniqueViolation = "23505"

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}

	q := `SELECT ` + accountColumns + `
FROM accounts
WHERE email = $1
LIMIT 1;`

	return s.findOne(ctx, q, email)
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}

	q := `SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
LIMIT 1;`

	return s.findOne(ctx, q, id)
}

func (s *AccountStore) findOne(ctx context.Context, q string, arg string) (domain.Account, error) {
	ar, err := scanAccountRow(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}
	return toDomainAccount(ar), nil
}

func (s *AccountStore) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = domain.NormalizeEmail(a.Email)
	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}
	if a.Email == "" {
		return domain.Account{}, domain.ErrMissingField("email")
	}
	if a.Role == "" {
		a.Role = domain.RoleFree
	}

	const q = `
INSERT INTO accounts (
    id, name, email, password_hash, role, is_otp_verified, is_verified,
    otp_code, otp_expires_at, otp_purpose, pending_email, email_change_code, email_change_expires_at,
    version, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1,$14,$15);
`
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsOtpVerified, a.IsVerified,
		a.OTP.Code, nullTime(a.OTP.ExpiresAt), otpPurposeColumn(a.OTP),
		a.PendingEmail, a.EmailChangeOTP.Code, nullTime(a.EmailChangeOTP.ExpiresAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrEmailInUse()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}

	a.Version = 1
	return a, nil
}

// Save writes the whole record if the stored version still equals a.Version.
func (s *AccountStore) Save(ctx context.Context, a domain.Account) (domain.Account, error) {
	a.Email = domain.NormalizeEmail(a.Email)
	if a.ID == "" {
		return domain.Account{}, domain.ErrMissingField("id")
	}

	const q = `
UPDATE accounts
SET name = $3,
    email = $4,
    password_hash = $5,
    role = $6,
    is_otp_verified = $7,
    is_verified = $8,
    otp_code = $9,
    otp_expires_at = $10,
    otp_purpose = $11,
    pending_email = $12,
    email_change_code = $13,
    email_change_expires_at = $14,
    updated_at = $15,
    version = version + 1
WHERE id = $1 AND version = $2
RETURNING version;
`
	var newVersion int64
	err := s.db.QueryRowContext(ctx, q,
		a.ID, a.Version,
		a.Name, a.Email, a.PasswordHash, string(a.Role), a.IsOtpVerified, a.IsVerified,
		a.OTP.Code, nullTime(a.OTP.ExpiresAt), otpPurposeColumn(a.OTP),
		a.PendingEmail, a.EmailChangeOTP.Code, nullTime(a.EmailChangeOTP.ExpiresAt),
		a.UpdatedAt,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, s.missOrConflict(ctx, a.ID)
		}
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrEmailInUse()
		}
		return domain.Account{}, domain.ErrDBUnavailable(err)
	}

	a.Version = newVersion
	return a, nil
}

// missOrConflict tells a vanished row apart from a lost CAS.
func (s *AccountStore) missOrConflict(ctx context.Context, id string) error {
	const q = `SELECT 1 FROM accounts WHERE id = $1;`

	var one int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrAccountNotFound()
	case err != nil:
		return domain.ErrDBUnavailable(err)
	default:
		return domain.ErrVersionConflict()
	}
}

func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + accountColumns + `
FROM accounts
ORDER BY created_at, id
LIMIT $1 OFFSET $2;`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	defer rows.Close()

	out := make([]domain.Account, 0, limit)
	for rows.Next() {
		ar, err := scanAccountRow(rows)
		if err != nil {
			return nil, domain.ErrDBUnavailable(err)
		}
		out = append(out, toDomainAccount(ar))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrDBUnavailable(err)
	}
	return out, nil
}

func (s *AccountStore) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	if !domain.IsValidRole(string(role)) {
		return 0, domain.ErrInvalidRole(string(role))
	}

	const q = `SELECT COUNT(1) FROM accounts WHERE role = $1;`

	var n int
	if err := s.db.QueryRowContext(ctx, q, string(role)).Scan(&n); err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
