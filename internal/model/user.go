package model

import "time"

// Role is the permission level attached to a user account.
//
// WHY CHECK ROLES IN THE SERVICE LAYER?
// An earlier iteration of this system only hid buttons in the UI and trusted
// the caller — trivially bypassable by anyone talking to the API directly.
// Here every core operation receives the caller's Principal and verifies the
// capability server-side before touching any data.
type Role string

const (
	RoleAdmin     Role = "ADMIN"     // full access, including user management
	RoleLibrarian Role = "LIBRARIAN" // manage students, books and loans
	RoleViewer    Role = "VIEWER"    // read-only
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLibrarian, RoleViewer:
		return true
	}
	return false
}

// CanManageRecords reports whether r may mutate students, books and loans.
func (r Role) CanManageRecords() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

// CanManageUsers reports whether r may create, edit or delete user accounts.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin
}

// User is a staff account that can log into the system.
//
// PasswordHash is a bcrypt hash. bcrypt embeds its own random salt in the
// hash string, so there is no separate salt column — two users with the same
// password still get different hashes.
//
// PasswordHash is deliberately excluded from JSON (`json:"-"`): user records
// travel to the admin UI and must never carry credential material.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"displayName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal identifies the authenticated caller of a core operation.
// It is extracted from the verified session token by the auth middleware
// and passed down into the service layer for capability checks.
type Principal struct {
	UserID string
	Role   Role
}
