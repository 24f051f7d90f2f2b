package dto

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

const (
	MsgOTPSent          = "OTP sent to your email. Please verify."
	MsgOTPVerified      = "OTP verified. Please set your password."
	MsgRegistered       = "Registration complete. You can now log in."
	MsgResetRequested   = "If an account exists with this email, an OTP has been sent."
	MsgResetDone        = "Password reset successful"
	MsgEmailChangeSent  = "OTP sent to new email address"
	MsgEmailChanged     = "Email changed successfully"
	MsgEmailChangeClear = "Pending email change cancelled"
)

type MessageResponse struct {
	Message string `json:"message"`
}

// FlowResponse reports where a signup currently stands.
type FlowResponse struct {
	Status  string `json:"status"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewFlowResponse(res account.FlowResult) FlowResponse {
	msg := MsgOTPSent
	if res.Status == account.StatusPendingPassword {
		msg = MsgOTPVerified
	}
	return FlowResponse{
		Status:  string(res.Status),
		Email:   res.Account.Email,
		Name:    res.Account.Name,
		Message: msg,
	}
}

type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewUserView(a domain.Account) UserView {
	return UserView{ID: a.ID, Name: a.Name, Email: a.Email, Role: string(a.Role)}
}

type LoginResponse struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn int64    `json:"expires_in"`
	User      UserView `json:"user"`
}

func NewLoginResponse(res account.LoginResult) LoginResponse {
	return LoginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresIn: res.ExpiresIn,
		User:      NewUserView(res.Account),
	}
}

type MeResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	PendingEmail string `json:"pending_email,omitempty"`
}

func NewMeResponse(a domain.Account) MeResponse {
	return MeResponse{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Role:         string(a.Role),
		Status:       a.State().String(),
		PendingEmail: a.PendingEmail,
	}
}

type AdminAccountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type AccountListResponse struct {
	Items  []AdminAccountView `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func NewAccountListResponse(list []domain.Account, limit, offset int) AccountListResponse {
	items := make([]AdminAccountView, 0, len(list))
	for _, a := range list {
		items = append(items, AdminAccountView{
			ID:        a.ID,
			Name:      a.Name,
			Email:     a.Email,
			Role:      string(a.Role),
			Status:    a.State().String(),
			CreatedAt: a.CreatedAt,
		})
	}
	return AccountListResponse{Items: items, Limit: limit, Offset: offset}
}
