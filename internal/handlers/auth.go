package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stitchfield/api/internal/platform/auth"
	"github.com/stitchfield/api/internal/platform/httpx"
	"github.com/stitchfield/api/internal/services"
)

// AuthHandlers exposes registration, login, and current-account endpoints.
type AuthHandlers struct {
	authn    *auth.Authenticator
	accounts services.AccountService
	limiter  *ipThrottle
}

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// NewAuthHandlers constructs the authentication endpoints. Login and
// registration are throttled per client IP.
func NewAuthHandlers(authn *auth.Authenticator, accounts services.AccountService) *AuthHandlers {
	return &AuthHandlers{
		authn:    authn,
		accounts: accounts,
		limiter:  newIPThrottle(loginRateLimit, loginRateWindow, nil),
	}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Group(func(authed chi.Router) {
		if h.authn != nil {
			authed.Use(h.authn.RequireAuth())
		}
		authed.Get("/me", h.me)
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionPayload struct {
	Token   string         `json:"token"`
	Account accountPayload `json:"user"`
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, slow down", http.StatusTooManyRequests))
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	account, token, err := h.accounts.Register(ctx, services.RegisterCommand{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeAccountError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusCreated, sessionPayload{
		Token:   token,
		Account: buildAccountPayload(account),
	})
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many attempts, slow down", http.StatusTooManyRequests))
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	account, token, err := h.accounts.Login(ctx, services.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeAccountError(ctx, w, err)
		return
	}

	httpx.WriteData(w, http.StatusOK, sessionPayload{
		Token:   token,
		Account: buildAccountPayload(account),
	})
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	account, err := h.accounts.GetAccount(ctx, identity.UID)
	if err != nil {
		h.writeAccountError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildAccountPayload(account))
}

func (h *AuthHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(r.RemoteAddr)
}

func (h *AuthHandlers) writeAccountError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAccountInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAccountConflict):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrAccountUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAccountDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("account_disabled", "account has been deactivated", http.StatusForbidden))
	case errors.Is(err, services.ErrAccountNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("account_not_found", "account not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "something went wrong", http.StatusInternalServerError))
	}
}
