package postgres

import (
	"database/sql"
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type accountRow struct {
	ID                   string
	Name                 string
	Email                string
	PasswordHash         string
	Role                 string
	IsOtpVerified        bool
	IsVerified           bool
	OTPCode              string
	OTPExpiresAt         sql.NullTime
	OTPPurpose           string
	PendingEmail         string
	EmailChangeCode      string
	EmailChangeExpiresAt sql.NullTime
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const accountColumns = `id, name, email, password_hash, role, is_otp_verified, is_verified,
otp_code, otp_expires_at, otp_purpose, pending_email, email_change_code, email_change_expires_at,
version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountRow(row rowScanner) (accountRow, error) {
	var ar accountRow
	err := row.Scan(
		&ar.ID,
		&ar.Name,
		&ar.Email,
		&ar.PasswordHash,
		&ar.Role,
		&ar.IsOtpVerified,
		&ar.IsVerified,
		&ar.OTPCode,
		&ar.OTPExpiresAt,
		&ar.OTPPurpose,
		&ar.PendingEmail,
		&ar.EmailChangeCode,
		&ar.EmailChangeExpiresAt,
		&ar.Version,
		&ar.CreatedAt,
		&ar.UpdatedAt,
	)
	return ar, err
}

func toDomainAccount(ar accountRow) domain.Account {
	return domain.Account{
		ID:             ar.ID,
		Name:           ar.Name,
		Email:          ar.Email,
		PasswordHash:   ar.PasswordHash,
		Role:           domain.Role(ar.Role),
		IsOtpVerified:  ar.IsOtpVerified,
		IsVerified:     ar.IsVerified,
		OTP:            toOTP(ar.OTPCode, ar.OTPExpiresAt, domain.OTPPurpose(ar.OTPPurpose)),
		PendingEmail:   ar.PendingEmail,
		EmailChangeOTP: toOTP(ar.EmailChangeCode, ar.EmailChangeExpiresAt, domain.PurposeEmailChange),
		Version:        ar.Version,
		CreatedAt:      ar.CreatedAt,
		UpdatedAt:      ar.UpdatedAt,
	}
}

func toOTP(code string, exp sql.NullTime, purpose domain.OTPPurpose) domain.OTP {
	if code == "" && !exp.Valid {
		return domain.OTP{}
	}
	o := domain.OTP{Code: code, Purpose: purpose}
	if exp.Valid {
		o.ExpiresAt = exp.Time
	}
	return o
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// otpPurposeColumn keeps the purpose column empty when no code is live.
func otpPurposeColumn(o domain.OTP) string {
	if o.IsZero() {
		return ""
	}
	return string(o.Purpose)
}
