package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "alumno"
)

// Valid reports whether the role is one the system knows about.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// User represents an account stored in the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserProfile holds the personal data attached to an account. A user may
// not have a profile yet; repositories surface that as sql.ErrNoRows so
// callers decide explicitly what a missing profile means.
type UserProfile struct {
	ID        int64    `db:"id" json:"id"`
	UserID    int64    `db:"user_id" json:"user_id"`
	FirstName string   `db:"first_name" json:"first_name"`
	LastName  string   `db:"last_name" json:"last_name"`
	DNI       string   `db:"dni" json:"dni"`
	Email     string   `db:"email" json:"email"`
	Role      UserRole `db:"role" json:"role"`
}

// UserDetail is the combined account+profile view returned by the API.
type UserDetail struct {
	ID        int64    `db:"id" json:"id"`
	Username  string   `db:"username" json:"username"`
	FirstName *string  `db:"first_name" json:"first_name"`
	LastName  *string  `db:"last_name" json:"last_name"`
	DNI       *string  `db:"dni" json:"dni"`
	Email     *string  `db:"email" json:"email"`
	Role      UserRole `db:"role" json:"type"`
}

// CreateUserRequest is the payload for registering an account with its
// profile. Role defaults to student when omitted.
type CreateUserRequest struct {
	Username  string   `json:"username" validate:"required,min=3,max=50"`
	Password  string   `json:"password" validate:"required,min=6"`
	FirstName string   `json:"first_name" validate:"required"`
	LastName  string   `json:"last_name" validate:"required"`
	DNI       string   `json:"dni" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Role      UserRole `json:"type"`
}

// UpdateUserRequest is the payload for editing an account and its
// profile. Passwords are never changed through this path.
type UpdateUserRequest struct {
	Username  string   `json:"username" validate:"required,min=3,max=50"`
	FirstName string   `json:"first_name" validate:"required"`
	LastName  string   `json:"last_name" validate:"required"`
	DNI       string   `json:"dni" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Role      UserRole `json:"type"`
}

// UserFilter captures filtering criteria for the paginated student listing.
type UserFilter struct {
	Search   string
	Page     int
	PageSize int
}
