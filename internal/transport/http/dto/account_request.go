package dto

import (
	"strings"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// -------- Signup --------

type SignupRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *SignupRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = domain.NormalizeEmail(r.Email)
	return validateStruct(r)
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,otp"`
}

func (r *VerifyOTPRequest) Validate() error {
	r.Email = domain.NormalizeEmail(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	return validateStruct(r)
}

type CompleteRegistrationRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password_policy"`
}

func (r *CompleteRegistrationRequest) Validate() error {
	r.Email = domain.NormalizeEmail(r.Email)
	return validateStruct(r)
}

// EmailOnlyRequest serves resend-otp and forgot-password.
type EmailOnlyRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *EmailOnlyRequest) Validate() error {
	r.Email = domain.NormalizeEmail(r.Email)
	return validateStruct(r)
}

// -------- Login --------

// LoginRequest carries a password, or an otp when the account is still unverified.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required_without=OTP"`
	OTP      string `json:"otp,omitempty" validate:"omitempty,otp"`
}

func (r *LoginRequest) Validate() error {
	r.Email = domain.NormalizeEmail(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	return validateStruct(r)
}

// -------- Password reset --------

// ResetPasswordRequest leaves the strength check to the service, which runs it
// after the account and code have been verified.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,otp"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (r *ResetPasswordRequest) Validate() error {
	r.Email = domain.NormalizeEmail(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	return validateStruct(r)
}

// -------- Email change --------

type EmailChangeRequest struct {
	NewEmail string `json:"new_email" validate:"required,email,max=254"`
}

func (r *EmailChangeRequest) Validate() error {
	r.NewEmail = domain.NormalizeEmail(r.NewEmail)
	return validateStruct(r)
}

type EmailChangeConfirmRequest struct {
	OTP string `json:"otp" validate:"required,otp"`
}

func (r *EmailChangeConfirmRequest) Validate() error {
	r.OTP = strings.TrimSpace(r.OTP)
	return validateStruct(r)
}

// -------- Profile / admin --------

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

func (r *UpdateProfileRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validateStruct(r)
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=free business admin"`
}

func (r *SetRoleRequest) Validate() error {
	r.Role = strings.TrimSpace(r.Role)
	return validateStruct(r)
}
