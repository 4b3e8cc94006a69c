package auth

import (
	"net/http"

	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// RequireAuth rejects requests that have no resolved session identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that rejects requests whose identity does
// not hold one of the listed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
				return
			}
			if _, ok := set[id.Role]; !ok {
				httpserver.RespondError(w, http.StatusForbidden, "authz_error", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTwoFactor rejects requests from a session that has not yet
// completed its TOTP challenge. Only meaningful for roles that mandate 2FA.
func RequireTwoFactor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == nil {
			httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
			return
		}
		if !id.TwoFactorVerified {
			httpserver.RespondError(w, http.StatusForbidden, "authz_error", "two-factor verification required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
