package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AccountHandler interface {
	// Signup
	StartSignup(w http.ResponseWriter, r *http.Request)
	VerifyInitialOtp(w http.ResponseWriter, r *http.Request)
	CompleteRegistration(w http.ResponseWriter, r *http.Request)
	ResendInitialOtp(w http.ResponseWriter, r *http.Request)

	Login(w http.ResponseWriter, r *http.Request)

	// Password reset
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)

	// Email change
	RequestEmailChange(w http.ResponseWriter, r *http.Request)
	ConfirmEmailChange(w http.ResponseWriter, r *http.Request)
	CancelEmailChange(w http.ResponseWriter, r *http.Request)

	// Profile
	Me(w http.ResponseWriter, r *http.Request)
	UpdateMe(w http.ResponseWriter, r *http.Request)

	// Admin
	ListAccounts(w http.ResponseWriter, r *http.Request)
	SetRole(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health  HealthHandler
	Account AccountHandler

	RequestIDMW func(http.Handler) http.Handler
	AuthMW      func(http.Handler) http.Handler
	AdminMW     func(http.Handler) http.Handler

	// Optional. Called once per unauthenticated route with its rate-limit scope.
	RateLimit func(routeKey string) func(http.Handler) http.Handler
	// Optional, applied to every route after RequestIDMW.
	Observe []func(http.Handler) http.Handler
	// Optional; defaults to the default prometheus registry.
	Metrics http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Account == nil {
		return nil, fmt.Errorf("nil Account handler")
	}
	if deps.RequestIDMW == nil {
		return nil, fmt.Errorf("nil RequestID middleware")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	limit := deps.RateLimit
	if limit == nil {
		limit = func(string) func(http.Handler) http.Handler { return passthrough }
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(deps.RequestIDMW)
	for _, mw := range deps.Observe {
		r.Use(mw)
	}
	r.Use(chimw.Recoverer)

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics)

	a := deps.Account
	r.Route("/account/v1", func(r chi.Router) {
		// --- Signup ---
		r.With(limit("signup")).Post("/signup", a.StartSignup)
		r.With(limit("signup_verify")).Post("/signup/verify-otp", a.VerifyInitialOtp)
		r.With(limit("signup_complete")).Post("/signup/complete", a.CompleteRegistration)
		r.With(limit("signup_resend")).Post("/signup/resend-otp", a.ResendInitialOtp)

		r.With(limit("login")).Post("/login", a.Login)

		// --- Password reset ---
		r.With(limit("password_forgot")).Post("/password/forgot", a.ForgotPassword)
		r.With(limit("password_reset")).Post("/password/reset", a.ResetPassword)

		// --- Authenticated ---
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMW)

			r.Post("/email/change", a.RequestEmailChange)
			r.Post("/email/change/confirm", a.ConfirmEmailChange)
			r.Delete("/email/change", a.CancelEmailChange)

			r.Get("/me", a.Me)
			r.Patch("/me", a.UpdateMe)
		})

		// --- Admin ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Use(deps.AdminMW)

			r.Get("/accounts", a.ListAccounts)
			r.Put("/accounts/{id}/role", a.SetRole)
		})
	})

	return r, nil
}

func passthrough(next http.Handler) http.Handler { return next }
