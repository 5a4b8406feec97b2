package users

import (
	"strings"
	"time"
)

// Profile represents the user record returned by the login and refresh
// endpoints and cached in the session store for display purposes. The
// session core treats it as opaque data; it never drives auth decisions.
type Profile struct {
	ID        string    `json:"id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	UserType  string    `json:"user_type,omitempty"`
	LastLogin time.Time `json:"last_login,omitempty"`
}

// FullName returns the display name, falling back to username then email.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return p.Email
}
