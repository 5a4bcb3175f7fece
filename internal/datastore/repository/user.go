package repository

import (
	"context"

	"github.com/tphakala/fallwatch/internal/datastore"
)

// UserRepository provides access to the users table.
type UserRepository interface {
	// Create inserts a user and fills in its ID.
	// Returns ErrDuplicateUsername if the username is taken.
	Create(ctx context.Context, user *datastore.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if not found.
	GetByID(ctx context.Context, id uint) (*datastore.User, error)

	// GetByUsername retrieves a user by exact username.
	// Returns ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*datastore.User, error)

	// List returns all users ordered by ID.
	List(ctx context.Context) ([]datastore.User, error)

	// UpdatePasswordHash replaces the stored hash.
	// Returns ErrUserNotFound if not found.
	UpdatePasswordHash(ctx context.Context, id uint, hash string) error

	// Delete removes a user by ID.
	// Returns ErrUserNotFound if not found.
	Delete(ctx context.Context, id uint) error

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)
}
