package auth

import (
	"context"

	"tabula/internal/core/id"
)

// UserRepository defines user storage operations.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves user by ID.
	GetByID(ctx context.Context, userID id.ID) (*User, error)

	// GetByLogin retrieves user by login.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// Update updates user data.
	Update(ctx context.Context, user *User) error

	// Exists checks if login is taken.
	Exists(ctx context.Context, login string) (bool, error)
}
