package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission against the role placed in the request context.
func Require(perm Perm) func(http.Handler) http.Handler {
	return RequireWith(defaultChecker, perm)
}

func RequireWith(c *Checker, perm Perm) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !c.Has(RoleFromContext(r.Context()), perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
