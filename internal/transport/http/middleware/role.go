package middleware

import (
	"log/slog"
	"net/http"
	"slices"
)

// RequireRole admits only requesters whose role is one of allowedRoles
// (e.g. domain.RoleAdmin). Must run after Auth.
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := RequesterFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !slices.Contains(allowedRoles, req.Role) {
				slog.Debug("role denied", "user_id", req.UserID, "role", req.Role, "path", r.URL.Path)
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
