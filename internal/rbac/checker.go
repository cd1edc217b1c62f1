// Package rbac maps LMS roles to the permissions the portal checks.
package rbac

import (
	"context"
	"strings"

	"github.com/mind-engage/engineering-lms/internal/lms"
)

// Perm names an action as "area:verb". A grant may end in "*" to cover an area.
type Perm string

// Policy lists the grants of each role.
type Policy map[lms.Role][]Perm

type Checker struct {
	policy Policy
}

// NewChecker uses DefaultPolicy when p is nil.
func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	return &Checker{policy: p}
}

// Has reports whether role is granted perm. Unknown roles hold nothing.
func (c *Checker) Has(role lms.Role, perm Perm) bool {
	for _, g := range c.policy[role] {
		if grants(g, perm) {
			return true
		}
	}
	return false
}

func grants(grant, perm Perm) bool {
	if grant == "*" || grant == perm {
		return true
	}
	area, ok := strings.CutSuffix(string(grant), "*")
	return ok && strings.HasPrefix(string(perm), area)
}

type ctxKey struct{}

func WithRole(ctx context.Context, role lms.Role) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

// RoleFromContext returns "" when no role was attached.
func RoleFromContext(ctx context.Context) lms.Role {
	r, _ := ctx.Value(ctxKey{}).(lms.Role)
	return r
}
