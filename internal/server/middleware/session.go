package middleware

import (
	"net/http"

	"github.com/academicchain/platform/internal/service"
)

// SessionCookie is the name of the HTTP-only admin session cookie.
const SessionCookie = "admin_token"

// RequireSession gates operator-facing routes on a valid admin session
// cookie. A missing cookie is 401; a cookie that fails signature or expiry
// checks is 403.
func RequireSession(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "Not authenticated. Log in first.")
				return
			}
			if err := authSvc.VerifySession(cookie.Value); err != nil {
				writeAuthError(w, http.StatusForbidden, "Invalid or expired session.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Hand-built JSON avoids an import cycle with the handler package.
	w.Write([]byte(`{"error":{"code":` + statusString(status) + `,"message":"` + message + `"}}`))
}

func statusString(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "401"
	case http.StatusForbidden:
		return "403"
	default:
		return "500"
	}
}
