package domain

import (
	"errors"
	"time"
)

// Role is the closed set of roles a user may hold. Roles are stored with the
// account but no endpoint gates access on them.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleDeveloper      Role = "developer"
	RoleStakeholder    Role = "stakeholder"
)

// DefaultRole is assigned to every self-registered account.
const DefaultRole = RoleDeveloper

var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrInvalidToken = errors.New("invalid or expired token")
var ErrMissingToken = errors.New("token not provided")
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
var ErrInvalidRole = errors.New("invalid role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProjectManager, RoleDeveloper, RoleStakeholder:
		return true
	}
	return false
}

// User is an account holder. PasswordHash always holds a bcrypt digest.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         Role
	RegisteredAt time.Time
	LastLoginAt  *time.Time
	Active       bool
}

// ProfileUpdate lists the fields the generic update path may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}
