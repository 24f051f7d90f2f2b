package mongodb

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type otpDoc struct {
	Code      string    `bson:"code"`
	ExpiresAt time.Time `bson:"expires_at"`
	Purpose   string    `bson:"purpose"`
}

// accountDoc is the stored shape of an account. The account id is the document _id.
type accountDoc struct {
	ID             string    `bson:"_id"`
	Name           string    `bson:"name"`
	Email          string    `bson:"email"`
	PasswordHash   string    `bson:"password_hash,omitempty"`
	Role           string    `bson:"role"`
	IsOtpVerified  bool      `bson:"is_otp_verified"`
	IsVerified     bool      `bson:"is_verified"`
	OTP            *otpDoc   `bson:"otp,omitempty"`
	PendingEmail   string    `bson:"pending_email,omitempty"`
	EmailChangeOTP *otpDoc   `bson:"email_change_otp,omitempty"`
	Version        int64     `bson:"version"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toDoc(a domain.Account) accountDoc {
	return accountDoc{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		PasswordHash:   a.PasswordHash,
		Role:           string(a.Role),
		IsOtpVerified:  a.IsOtpVerified,
		IsVerified:     a.IsVerified,
		OTP:            toOTPDoc(a.OTP),
		PendingEmail:   a.PendingEmail,
		EmailChangeOTP: toOTPDoc(a.EmailChangeOTP),
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toOTPDoc(o domain.OTP) *otpDoc {
	if o.IsZero() {
		return nil
	}
	return &otpDoc{Code: o.Code, ExpiresAt: o.ExpiresAt, Purpose: string(o.Purpose)}
}

func (d accountDoc) toDomain() domain.Account {
	return domain.Account{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Role:           domain.Role(d.Role),
		IsOtpVerified:  d.IsOtpVerified,
		IsVerified:     d.IsVerified,
		OTP:            d.OTP.toDomain(),
		PendingEmail:   d.PendingEmail,
		EmailChangeOTP: d.EmailChangeOTP.toDomain(),
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func (o *otpDoc) toDomain() domain.OTP {
	if o == nil {
		return domain.OTP{}
	}
	return domain.OTP{Code: o.Code, ExpiresAt: o.ExpiresAt, Purpose: domain.OTPPurpose(o.Purpose)}
}
