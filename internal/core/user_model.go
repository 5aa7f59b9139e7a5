package core

import (
	"context"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleSales      Role = "sales"
)

// User is a shop employee who can sign in. Sales records reference users as sales persons.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserService provides user lookup and credential checks.
type UserService interface {
	// GetByUsername finds an active user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// Authenticate returns the active user whose bcrypt hash matches password.
	// Unknown users and wrong passwords both yield ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// CreateUser stores a new active user with a bcrypt hash of password.
	CreateUser(ctx context.Context, username, email, password string, role Role) (*User, error)
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician, RoleSales:
		return true
	}
	return false
}
