package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/tweetsync/internal/auth"
)

// Authenticator checks admin credentials. *service.AdminAuthService
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler manages the admin session cookie.
type AuthHandler struct {
	admin  Authenticator
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

func NewAuthHandler(admin Authenticator, ttl time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{admin: admin, ttl: ttl, secure: secureCookie, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminResponse struct {
	Username string `json:"username"`
}

// HandleLogin checks the credentials and sets the session cookie.
//
// HTTP: POST /auth/login  {"username": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.admin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(token, h.ttl, h.secure))
	writeJSON(w, http.StatusOK, adminResponse{Username: req.Username})
}

// HandleLogout clears the session cookie. It succeeds without a session.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(h.secure))
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the logged-in admin. Mounted behind RequireAdmin.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	name, _ := auth.AdminFromContext(r.Context())
	writeJSON(w, http.StatusOK, adminResponse{Username: name})
}
