package handler

import (
	"net/http"

	"github.com/academicchain/platform/internal/server/middleware"
	"github.com/academicchain/platform/internal/service"
)

// AuthHandler manages the administrator session: login, logout, and the
// session check used by the dashboard on load.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type loginRequest struct {
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

// Login authenticates the administrator and sets the session cookie.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	if err := h.authSvc.Login(req.Password, req.TOTP); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authSvc.IssueSession()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session")
		return
	}

	// The dashboard frontend is served from a different origin, so the
	// cookie must survive cross-site requests.
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.authSvc.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged in",
	})
}

// Logout clears the session cookie. Tokens are stateless; the server keeps
// no session record to invalidate.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session closed",
	})
}

// Check reports whether the caller holds a valid session. Mounted behind
// RequireSession, so reaching the handler means yes.
// GET /api/v1/auth/check
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          "admin",
	})
}
