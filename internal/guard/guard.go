// Package guard decides which page a path renders for the current identity.
// It is advisory routing; the backend's own rules are the security boundary.
package guard

import (
	"errors"
	"strings"

	"github.com/mind-engage/engineering-lms/internal/lms"
	"github.com/mind-engage/engineering-lms/internal/rbac"
)

type Page string

const (
	PageLogin         Page = "login"
	PageRegister      Page = "register"
	PageDashboard     Page = "dashboard"
	PageCourses       Page = "courses"
	PageCourseDetails Page = "course_details"
	PageModuleView    Page = "module_view"
	PageAdmin         Page = "admin"
	PageNotFound      Page = "not_found"
)

const (
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// maxHops bounds Resolve; the table never needs more than two.
const maxHops = 4

var ErrRedirectLoop = errors.New("guard: too many redirects")

// Identity is all the guard looks at.
type Identity struct {
	Present bool
	Role    lms.Role
}

func IdentityOf(u *lms.User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{Present: true, Role: u.Role}
}

// Decision is either a page to render (with its path parameters) or a redirect.
type Decision struct {
	Path     string            `json:"path"`
	Page     Page              `json:"page,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

func (d Decision) IsRedirect() bool { return d.Redirect != "" }

type Guard struct {
	perms *rbac.Checker
}

func New(perms *rbac.Checker) *Guard {
	if perms == nil {
		perms = rbac.NewChecker(nil)
	}
	return &Guard{perms: perms}
}

// Decide applies the routing table to one path.
func (g *Guard) Decide(path string, id Identity) Decision {
	path = Normalize(path)
	d := Decision{Path: path}
	segs := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/":
		d.Redirect = PathDashboard
	case path == PathLogin || path == "/register":
		if id.Present {
			d.Redirect = PathDashboard
			return d
		}
		d.Page = PageLogin
		if path == "/register" {
			d.Page = PageRegister
		}
	case path == "/admin":
		switch {
		case !id.Present:
			d.Redirect = PathLogin
		case !g.perms.Has(id.Role, rbac.PermAdmin):
			d.Redirect = PathDashboard
		default:
			d.Page = PageAdmin
		}
	default:
		page, params := protected(segs)
		if page == "" {
			d.Page = PageNotFound
			return d
		}
		if !id.Present {
			d.Redirect = PathLogin
			return d
		}
		d.Page, d.Params = page, params
	}
	return d
}

// Resolve follows redirects until a page renders.
func (g *Guard) Resolve(path string, id Identity) (Decision, error) {
	d := g.Decide(path, id)
	for hops := 0; d.IsRedirect(); hops++ {
		if hops == maxHops {
			return d, ErrRedirectLoop
		}
		d = g.Decide(d.Redirect, id)
	}
	return d, nil
}

func protected(segs []string) (Page, map[string]string) {
	switch {
	case len(segs) == 1 && segs[0] == "dashboard":
		return PageDashboard, nil
	case len(segs) == 1 && segs[0] == "courses":
		return PageCourses, nil
	case len(segs) == 2 && segs[0] == "courses" && segs[1] != "":
		return PageCourseDetails, map[string]string{"courseId": segs[1]}
	case len(segs) == 2 && segs[0] == "modules" && segs[1] != "":
		return PageModuleView, map[string]string{"moduleId": segs[1]}
	}
	return "", nil
}

// Normalize drops query strings and trailing slashes; "" becomes "/".
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
