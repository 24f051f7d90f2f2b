package http_handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/application/account"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/dto"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/middleware"
	"github.com/baechuer/real-time-ressys/services/account-service/internal/transport/http/response"
)

type AccountHandler struct {
	svc *account.Service
}

func NewAccountHandler(svc *account.Service) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// ---------------------
// Signup
// ---------------------

func (h *AccountHandler) StartSignup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.StartSignup(r.Context(), req.Name, req.Email)
	if err != nil {
		middleware.SignupStepsTotal.WithLabelValues("start", domain.Code(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.SignupStepsTotal.WithLabelValues("start", string(res.Status)).Inc()

	response.OK(w, dto.NewFlowResponse(res))
}

func (h *AccountHandler) VerifyInitialOtp(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.VerifyInitialOtp(r.Context(), req.Email, req.OTP)
	if err != nil {
		middleware.SignupStepsTotal.WithLabelValues("verify_otp", domain.Code(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.SignupStepsTotal.WithLabelValues("verify_otp", string(res.Status)).Inc()

	response.OK(w, dto.NewFlowResponse(res))
}

func (h *AccountHandler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteRegistrationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	acc, err := h.svc.CompleteRegistration(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.SignupStepsTotal.WithLabelValues("complete", domain.Code(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.SignupStepsTotal.WithLabelValues("complete", "active").Inc()

	logger.WithCtx(r.Context()).Info().
		Str("account_id", acc.ID).
		Msg("account_registered")

	response.Created(w, dto.MessageResponse{Message: dto.MsgRegistered})
}

func (h *AccountHandler) ResendInitialOtp(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailOnlyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.ResendInitialOtp(r.Context(), req.Email)
	if err != nil {
		middleware.SignupStepsTotal.WithLabelValues("resend_otp", domain.Code(err)).Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.SignupStepsTotal.WithLabelValues("resend_otp", string(res.Status)).Inc()

	response.OK(w, dto.NewFlowResponse(res))
}

// ---------------------
// Login
// ---------------------

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password, req.OTP)
	if err != nil {
		middleware.LoginAttemptsTotal.WithLabelValues(domain.Code(err)).Inc()
		response.WriteError(w, r, err)
		return
	}

	if !res.Authenticated() {
		middleware.LoginAttemptsTotal.WithLabelValues(string(res.Status)).Inc()
		response.OK(w, dto.NewFlowResponse(account.FlowResult{Status: res.Status, Account: res.Account}))
		return
	}

	middleware.LoginAttemptsTotal.WithLabelValues("success").Inc()
	logger.WithCtx(r.Context()).Info().
		Str("account_id", res.Account.ID).
		Msg("account_logged_in")

	response.OK(w, dto.NewLoginResponse(res))
}

// ---------------------
// Password reset
// ---------------------

// ForgotPassword answers identically for known and unknown emails.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailOnlyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.RequestReset(r.Context(), req.Email); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageResponse{Message: dto.MsgResetRequested})
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.svc.ConfirmReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageResponse{Message: dto.MsgResetDone})
}

// ---------------------
// Email change (bearer)
// ---------------------

func (h *AccountHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.EmailChangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.RequestEmailChange(r.Context(), accountID, req.NewEmail); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageResponse{Message: dto.MsgEmailChangeSent})
}

func (h *AccountHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.EmailChangeConfirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	acc, err := h.svc.ConfirmEmailChange(r.Context(), accountID, req.OTP)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, struct {
		Message string       `json:"message"`
		User    dto.UserView `json:"user"`
	}{Message: dto.MsgEmailChanged, User: dto.NewUserView(acc)})
}

func (h *AccountHandler) CancelEmailChange(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	if err := h.svc.CancelEmailChange(r.Context(), accountID); err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.MessageResponse{Message: dto.MsgEmailChangeClear})
}

// ---------------------
// Profile
// ---------------------

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	acc, err := h.svc.GetMe(r.Context(), accountID)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewMeResponse(acc))
}

func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenInvalid())
		return
	}

	var req dto.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	acc, err := h.svc.UpdateProfile(r.Context(), accountID, req.Name)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewMeResponse(acc))
}

// ---------------------
// Admin
// ---------------------

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	list, err := h.svc.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewAccountListResponse(list, limit, offset))
}

func (h *AccountHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AccountIDFromContext(r.Context())
	actorRole, _ := middleware.RoleFromContext(r.Context())

	targetID := chi.URLParam(r, "id")
	if strings.TrimSpace(targetID) == "" {
		response.WriteError(w, r, domain.ErrMissingField("id"))
		return
	}

	var req dto.SetRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	acc, err := h.svc.SetRole(r.Context(), actorID, actorRole, targetID, req.Role)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("actor_id", actorID).
		Str("target_id", acc.ID).
		Str("role", string(acc.Role)).
		Msg("account_role_changed")

	response.OK(w, dto.NewUserView(acc))
}

type validatable interface {
	Validate() error
}

// decodeAndValidate writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req validatable) bool {
	if err := response.DecodeJSON(w, r, req); err != nil {
		response.WriteError(w, r, err)
		return false
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.ErrInvalidField(key, "must be a non-negative integer")
	}
	return n, nil
}
