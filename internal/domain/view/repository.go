package view

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the registry contract for live map views.
type Repository interface {
	// Save registers a new view.
	Save(ctx context.Context, v Instance) error

	// FindByID retrieves a view by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (Instance, error)

	// Delete unregisters a view and returns it so the caller can tear it down.
	Delete(ctx context.Context, id uuid.UUID) (Instance, error)

	// List returns every registered view.
	List(ctx context.Context) ([]Instance, error)

	// Count returns the number of registered views.
	Count(ctx context.Context) (int, error)
}
