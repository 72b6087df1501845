// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/passkit/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to accounts and their credentials.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdatePasswordHash replaces the stored hash only if it still equals prev.
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, prev, next string) error
}
