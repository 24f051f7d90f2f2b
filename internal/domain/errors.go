package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code, part of the client contract
// - Message: safe summary for clients
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// Is reports whether err is a domain error carrying code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Code returns the domain code of err, or "non_domain_error".
func Code(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "non_domain_error"
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrWeakPassword(reason string) *Error {
	return WithMeta(New(KindValidation, "weak_password", "password does not meet requirements"), map[string]string{
		"reason": reason,
	})
}

func ErrInvalidOrExpiredOTP() *Error {
	return New(KindValidation, "invalid_or_expired_otp", "Invalid or expired OTP")
}

func ErrSameEmail() *Error {
	return New(KindValidation, "same_email", "New email is the same as current email")
}

func ErrNoPendingChange() *Error {
	return New(KindValidation, "no_pending_change", "No pending email change")
}

func ErrInvalidRole(role string) *Error {
	return WithMeta(
		New(KindValidation, "invalid_role", "invalid role"),
		map[string]string{"role": role},
	)
}

// ----------------------
// Auth errors (401)
// ----------------------

// Used for every login failure so the response never reveals whether the email exists.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, "invalid_credentials", "Invalid credentials")
}

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

// ----------------------
// Forbidden (403)
// ----------------------

func ErrOTPNotVerified() *Error {
	return New(KindForbidden, "otp_not_verified", "OTP not verified. Please verify your email first.")
}

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", "forbidden")
}

func ErrInsufficientRole(required string) *Error {
	return WithMeta(New(KindForbidden, "insufficient_role", "insufficient role"), map[string]string{
		"required": required,
	})
}

// Admin cannot perform this action on themselves.
func ErrCannotAffectSelf() *Error {
	return New(KindForbidden, "cannot_affect_self", "cannot perform this action on self")
}

func ErrLastAdminProtected() *Error {
	return New(KindForbidden, "last_admin_protected", "cannot remove last admin")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrAccountNotFound() *Error {
	return New(KindNotFound, "account_not_found", "User not found")
}

// ----------------------
// Conflict (409)
// ----------------------

func ErrAlreadyRegistered() *Error {
	return New(KindConflict, "already_registered", "Email already registered and verified. Please login.")
}

func ErrAlreadyVerified() *Error {
	return New(KindConflict, "already_verified", "Account already verified")
}

func ErrEmailInUse() *Error {
	return New(KindConflict, "email_in_use", "Email already in use")
}

// Another request updated the account between our read and write.
func ErrVersionConflict() *Error {
	return New(KindConflict, "version_conflict", "account was modified concurrently")
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrNotificationFailed(cause error) *Error {
	return Wrap(KindInfrastructure, "notification_failed", "could not deliver verification code", cause)
}

// ErrHashFailed wraps a hashing failure. A cause that is already a domain
// error is returned unchanged.
func ErrHashFailed(cause error) *Error {
	var de *Error
	if errors.As(cause, &de) {
		return de
	}
	return Wrap(KindInternal, "hash_failed", "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
