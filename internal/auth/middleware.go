package auth

import (
	"errors"
	"net/http"

	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// sessionCookieName is the HttpOnly cookie carrying the raw session token.
const sessionCookieName = "tracetrack_session"

// SessionMiddleware resolves the session cookie into a request-scoped
// Identity. Sessions are only ever created after both password and (for
// accounts with TOTP enabled) TOTP verification succeed, so a resolved session is always fully
// authenticated.
func SessionMiddleware(store *SessionStore, users *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "no session cookie")
				return
			}

			sess, err := store.Resolve(r.Context(), cookie.Value)
			if errors.Is(err, ErrSessionNotFound) {
				httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "session expired or invalid")
				return
			}
			if err != nil {
				httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "failed to resolve session")
				return
			}

			var username, role string
			qErr := users.pool.QueryRow(r.Context(), `SELECT username, role FROM users WHERE id = $1`, sess.UserID).Scan(&username, &role)
			if qErr != nil {
				httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "user no longer exists")
				return
			}

			identity := &Identity{
				UserID:            sess.UserID,
				Username:          username,
				Role:              role,
				TwoFactorVerified: true,
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie writes the session cookie. HttpOnly + Secure + SameSite
// Lax so it cannot be read or exfiltrated by client script and is not sent
// cross-site on unsafe requests.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// ClearSessionCookie removes the session cookie (logout).
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// SessionCookie reads the raw session token from the request, if present.
func SessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	return c.Value, true
}
