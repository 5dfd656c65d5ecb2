package users

import (
	"time"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// User is an account that can authenticate. PasswordHash never leaves the
// server.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	Active       bool        `json:"active"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CreateRequest registers a new account.
type CreateRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Name     string      `json:"name" validate:"required"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     shared.Role `json:"role" validate:"required,oneof=admin agent"`
}

// UpdateRequest modifies an account. Nil fields are left unchanged.
type UpdateRequest struct {
	Name     *string      `json:"name,omitempty"`
	Role     *shared.Role `json:"role,omitempty" validate:"omitempty,oneof=admin agent"`
	Active   *bool        `json:"active,omitempty"`
	Password *string      `json:"password,omitempty" validate:"omitempty,min=8"`
}
