package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-useraccess/pkg/auth"
	"github.com/tendant/simple-useraccess/pkg/client"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/principal"
)

type RegisterResponse struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Enabled        bool      `json:"enabled"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handle struct {
	authService  *auth.AuthService
	secureCookie bool
}

type Option func(*Handle)

// WithSecureCookie marks the access token cookie Secure. Disable only for
// local development over plain HTTP.
func WithSecureCookie(secure bool) Option {
	return func(h *Handle) {
		h.secureCookie = secure
	}
}

func NewHandle(authService *auth.AuthService, opts ...Option) *Handle {
	h := &Handle{authService: authService, secureCookie: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the public /auth routes.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Get("/verify-email", h.VerifyEmail)
	r.Post("/signin", h.SignIn)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)
	return r
}

// Register handles POST /auth/register
func (h *Handle) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		apperrors.Render(w, r, auth.ValidationError(err))
		return
	}

	created, err := h.authService.Register(r.Context(), req)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}

	var resp RegisterResponse
	if err := copier.Copy(&resp, &created); err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to map user"))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// VerifyEmail handles GET /auth/verify-email?token=
func (h *Handle) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apperrors.Render(w, r, apperrors.Validation("token is required", nil))
		return
	}
	if err := h.authService.VerifyEmail(r.Context(), token); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "email verified"})
}

// SignIn handles POST /auth/signin. The access token is also set as an
// HttpOnly cookie.
func (h *Handle) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.authService.SignIn(r.Context(), req)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}

	h.setTokenCookie(w, client.ACCESS_TOKEN_NAME, pair.AccessToken, pair.AccessTokenExpiresAt)
	render.JSON(w, r, pair)
}

// ForgotPassword handles POST /auth/forgot-password. It answers 200 for any
// well-formed request.
func (h *Handle) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username != "" {
		if err := h.authService.ForgotPassword(r.Context(), req.Username); err != nil {
			slog.Error("Forgot password failed", "error", err)
		}
	}
	render.JSON(w, r, MessageResponse{Message: "if the account exists, a password reset email has been sent"})
}

// ResetPassword handles POST /auth/reset-password
func (h *Handle) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.authService.ResetPassword(r.Context(), req); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "password has been reset"})
}

// ChangePassword handles POST /user/me/change-password. It must run behind
// client.AuthMiddleware.
func (h *Handle) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		apperrors.Render(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required"))
		return
	}

	var req auth.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		apperrors.Render(w, r, auth.ValidationError(err))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), p.Username, req.CurrentPassword, req.NewPassword); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "password has been changed"})
}

func (h *Handle) setTokenCookie(w http.ResponseWriter, tokenName, tokenValue string, expire time.Time) {
	tokenCookie := &http.Cookie{
		Name:     tokenName,
		Path:     "/",
		Value:    tokenValue,
		Expires:  expire,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, tokenCookie)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apperrors.Render(w, r, apperrors.Validation("invalid request body", nil))
		return false
	}
	return true
}
