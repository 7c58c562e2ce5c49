package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
	"github.com/pribylovaa/auth-session-service/internal/service"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/apierrors"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/middleware"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	Message string          `json:"message,omitempty"`
	User    *models.Profile `json:"user"`
}

type loginResponse struct {
	Message          string         `json:"message"`
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	AccessExpiresAt  time.Time      `json:"access_expires_at"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
	User             models.Profile `json:"user"`
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register - POST /register: 201 и публичный профиль.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	profile, err := h.auth.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{Message: "registered", User: profile})
}

// Login - POST /login: пара токенов и профиль.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:          "logged in",
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		User:             res.Profile,
	})
}

// Refresh - POST /refresh: refresh-токен берётся из Authorization: Bearer,
// иначе из тела {"refresh_token": "..."}.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Context())
	if !ok {
		var in refreshRequest
		if err := decodeStrict(w, r, &in); err != nil {
			apierrors.WriteError(w, r, service.ErrInvalidToken)
			return
		}
		token = in.RefreshToken
	}

	grant, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: grant.AccessToken, ExpiresAt: grant.ExpiresAt})
}

// Profile - GET /profile по access-токену.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	uid, r, err := h.authenticate(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	profile, err := h.auth.GetProfile(r.Context(), uid)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: profile})
}

// Logout - POST /logout по access-токену.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	uid, r, err := h.authenticate(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.auth.Logout(r.Context(), uid); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// authenticate проверяет access-токен и прикрепляет user_id к логгеру запроса.
func (h *Handlers) authenticate(r *http.Request) (int64, *http.Request, error) {
	token, ok := middleware.BearerToken(r.Context())
	if !ok {
		return 0, r, service.ErrInvalidToken
	}

	uid, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		return 0, r, err
	}

	return uid, r.WithContext(log.With(r.Context(), slog.Int64("user_id", uid))), nil
}
