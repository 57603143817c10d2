package web

import (
	"net/http"

	"membership-platform/internal/domain/model"
)

// Coarse action names checked before a handler runs. Ownership of individual
// orders is still enforced in the use cases, so a stolen admin token cannot
// be widened by skipping these.
const (
	actionCheckout     = "checkout"
	actionManageLevel  = "levels:manage"
	actionReadAnyOrder = "orders:read_any"
)

// canPerform is the single authorization decision point for route-level
// checks. Members get the self-service surface; level management is admin
// only.
func canPerform(role model.UserRole, action string) bool {
	switch action {
	case actionManageLevel, actionReadAnyOrder:
		return role == model.UserRoleAdmin
	case actionCheckout:
		return role == model.UserRoleMember || role == model.UserRoleAdmin
	default:
		return false
	}
}

// sessionMiddleware rejects requests without a valid session and stashes the
// claims in the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// requireAction gates a subtree on a canPerform action.
func (s *Server) requireAction(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
				return
			}
			if !canPerform(model.UserRole(claims.Role), action) {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
