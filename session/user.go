package session

// Role is a role attached to a user record. Only the admin flag is
// interpreted by the session layer.
type Role struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Admin bool   `json:"admin"`
	Child bool   `json:"child"`
}

// UserRecord is the server-issued user profile. It is treated as opaque
// payload beyond the role admin flags and the siteLanguage/darkMode fields
// used to drive collaborator side effects.
type UserRecord struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Roles         []Role `json:"roles"`
	SiteLanguage  string `json:"siteLanguage,omitempty"`
	DarkMode      bool   `json:"darkMode"`
	Timezone      string `json:"timezone,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// IsAdmin reports whether any role carries the admin flag.
func (u *UserRecord) IsAdmin() bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Admin {
			return true
		}
	}
	return false
}
