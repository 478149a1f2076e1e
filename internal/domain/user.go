package domain

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User mirrors the users table. PasswordHash is never exposed outside the
// account layer.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal is the acting identity derived from a session token. The zero
// value is the anonymous caller.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// Anonymous is the principal of a request without a valid session.
var Anonymous = Principal{}

// PrincipalFor builds the principal for an authenticated user.
func PrincipalFor(u User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// LoggedIn reports whether a user is logged in.
func (p Principal) LoggedIn() bool {
	return p.UserID > 0
}

// IsAdmin reports whether the logged-in user is an admin.
func (p Principal) IsAdmin() bool {
	return p.LoggedIn() && p.Role == RoleAdmin
}
