package repository

import (
	"context"

	"ats-be/internal/domain"
)

// ProfileStore is the row-oriented profile table service. Implementations
// talk to Postgres directly or to the hosted REST surface; both return
// (nil, nil) for a missing row so callers can treat not-found as a soft
// condition rather than an error.
type ProfileStore interface {
	// GetByID fetches a single profile row by user id.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)

	// Upsert writes a full row, tolerating an existing partial row created
	// by a backend trigger.
	Upsert(ctx context.Context, profile *domain.Profile) error

	// Update applies a partial patch keyed by id. Empty patches are a no-op.
	Update(ctx context.Context, id string, patch domain.ProfileUpdate) error

	// List returns all profile rows, newest first.
	List(ctx context.Context) ([]domain.Profile, error)

	// SetRole changes the stored role for a user.
	SetRole(ctx context.Context, id string, role domain.Role) error
}
