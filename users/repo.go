package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// UserRepo is the subset of the user store the bridge depends on.
// Lookups return ErrNotFound for missing rows.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*DatabaseUser, error)
	GetByEmail(ctx context.Context, email string) (*DatabaseUser, error)
	// SetFirstLoginMethod writes the value only when the column is empty.
	SetFirstLoginMethod(ctx context.Context, userID, method string) error
	// SetExternalUserID writes the value only when the column is empty.
	SetExternalUserID(ctx context.Context, userID, externalUserID string) error
	SetLastLoginMethod(ctx context.Context, userID, method string) error
}

// AccountRepo looks up linked provider accounts.
type AccountRepo interface {
	// GetByUserAndProvider returns the latest account of the user for providerID.
	GetByUserAndProvider(ctx context.Context, userID, providerID string) (*DatabaseAccount, error)
	// GetLatestByUser returns the most recently created account of the user.
	GetLatestByUser(ctx context.Context, userID string) (*DatabaseAccount, error)
}
