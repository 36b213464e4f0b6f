// Package user defines the account model and its roles.
package user

import "time"

// Role determines which routes a user may call.
type Role string

const (
	// RoleStandard can request predictions and read its own history.
	RoleStandard Role = "standard"
	// RoleAdmin can additionally manage models.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// User is a registered account. The password hash never leaves the backend.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
