package pages

import "github.com/mind-engage/engineering-lms/internal/lms"

const brand = "Engineering LMS"

type Link struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active,omitempty"`
}

// Nav is the chrome shown around every signed-in page.
type Nav struct {
	Brand    string `json:"brand"`
	Home     string `json:"home"`
	Links    []Link `json:"links"`
	UserName string `json:"user_name,omitempty"`
	SignOut  string `json:"sign_out,omitempty"`
}

func NavFor(u *lms.User, current string) Nav {
	n := Nav{Brand: brand, Home: "/dashboard"}
	if u == nil {
		return n
	}
	n.UserName = u.FullName
	n.SignOut = "/auth/logout"
	n.Links = []Link{
		{Label: "Dashboard", Path: "/dashboard"},
		{Label: "Courses", Path: "/courses"},
	}
	if u.Role == lms.RoleAdmin {
		n.Links = append(n.Links, Link{Label: "Admin", Path: "/admin"})
	}
	for i := range n.Links {
		n.Links[i].Active = n.Links[i].Path == current
	}
	return n
}
