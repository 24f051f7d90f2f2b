package domain

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

// OTPTTL is the fixed lifetime of every one-time code.
const OTPTTL = 10 * time.Minute

type OTPPurpose string

const (
	PurposeSignup        OTPPurpose = "signup"
	PurposePasswordReset OTPPurpose = "password_reset"
	PurposeEmailChange   OTPPurpose = "email_change"
)

// OTP is a one-time code bound to a purpose. The zero value means "no code".
type OTP struct {
	Code      string
	ExpiresAt time.Time
	Purpose   OTPPurpose
}

func (o OTP) IsZero() bool {
	return o.Code == "" && o.ExpiresAt.IsZero()
}

// Matches reports whether code confirms this OTP for purpose at now.
// The code is live up to and including ExpiresAt.
func (o OTP) Matches(code string, purpose OTPPurpose, now time.Time) bool {
	if o.Code == "" || o.ExpiresAt.IsZero() || o.Purpose != purpose {
		return false
	}
	if now.After(o.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) == 1
}

// State is the signup/login sub-state of an account.
type State int

const (
	// StateNew is the state of an email with no account record.
	StateNew State = iota
	StateUnverified
	StatePendingPassword
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUnverified:
		return "unverified"
	case StatePendingPassword:
		return "pending_password"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role

	IsOtpVerified bool
	IsVerified    bool

	// OTP is the primary code (signup or password reset).
	OTP OTP

	PendingEmail   string
	EmailChangeOTP OTP

	// Version is bumped by the store on every successful save.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount builds a fresh UNVERIFIED account holding a signup code.
func NewAccount(id, name, email string, otp OTP, now time.Time) Account {
	return Account{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Role:      RoleFree,
		OTP:       otp,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a Account) HasPassword() bool { return a.PasswordHash != "" }

func (a Account) HasPendingEmailChange() bool { return a.PendingEmail != "" }

// State derives the sub-state from the persisted flags. A record that has a
// password but never completed registration is routed back to the password step.
func (a Account) State() State {
	switch {
	case !a.IsOtpVerified:
		return StateUnverified
	case a.IsVerified && a.HasPassword():
		return StateActive
	default:
		return StatePendingPassword
	}
}

// IssueOTP replaces whatever primary code is live.
func (a *Account) IssueOTP(otp OTP) {
	a.OTP = otp
}

// ConfirmSignupOTP moves UNVERIFIED -> PENDING_PASSWORD.
func (a *Account) ConfirmSignupOTP(code string, now time.Time) error {
	if !a.OTP.Matches(code, PurposeSignup, now) {
		return ErrInvalidOrExpiredOTP()
	}
	a.IsOtpVerified = true
	a.OTP = OTP{}
	return nil
}

// CompleteRegistration moves PENDING_PASSWORD -> ACTIVE.
func (a *Account) CompleteRegistration(passwordHash string) error {
	if !a.IsOtpVerified {
		return ErrOTPNotVerified()
	}
	if passwordHash == "" {
		return ErrMissingField("password_hash")
	}
	a.PasswordHash = passwordHash
	a.IsVerified = true
	return nil
}

// ReplacePassword is the final step of a password reset. Verification flags are untouched.
func (a *Account) ReplacePassword(passwordHash string) {
	a.PasswordHash = passwordHash
	a.OTP = OTP{}
}

func (a *Account) RequestEmailChange(newEmail string, otp OTP) {
	a.PendingEmail = NormalizeEmail(newEmail)
	a.EmailChangeOTP = otp
}

func (a *Account) ConfirmEmailChange(code string, now time.Time) error {
	if !a.HasPendingEmailChange() {
		return ErrNoPendingChange()
	}
	if !a.EmailChangeOTP.Matches(code, PurposeEmailChange, now) {
		return ErrInvalidOrExpiredOTP()
	}
	a.Email = a.PendingEmail
	a.CancelEmailChange()
	return nil
}

func (a *Account) CancelEmailChange() {
	a.PendingEmail = ""
	a.EmailChangeOTP = OTP{}
}

// CheckInvariants validates a record before it is written.
func (a Account) CheckInvariants() error {
	switch {
	case a.ID == "":
		return ErrMissingField("id")
	case a.Email == "":
		return ErrMissingField("email")
	case !IsValidRole(string(a.Role)):
		return ErrInvalidRole(string(a.Role))
	case a.HasPassword() && !a.IsOtpVerified:
		return ErrInternal(fmt.Errorf("account %s: password set before otp verification", a.ID))
	case a.IsVerified && !a.HasPassword():
		return ErrInternal(fmt.Errorf("account %s: verified without password", a.ID))
	case halfSet(a.OTP):
		return ErrInternal(fmt.Errorf("account %s: otp half set", a.ID))
	case halfSet(a.EmailChangeOTP):
		return ErrInternal(fmt.Errorf("account %s: email change otp half set", a.ID))
	case a.HasPendingEmailChange() != !a.EmailChangeOTP.IsZero():
		return ErrInternal(fmt.Errorf("account %s: pending email without code", a.ID))
	}
	return nil
}

func halfSet(o OTP) bool {
	return (o.Code == "") != o.ExpiresAt.IsZero()
}

// NormalizeEmail is the single case policy for emails: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
