package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/NaviWasm/service-mapview/internal/domain/view"
)

// MemoryViewRepository is the in-process registry of live map views.
type MemoryViewRepository struct {
	mu    sync.RWMutex
	views map[uuid.UUID]view.Instance
	order []uuid.UUID
}

// NewMemoryViewRepository creates an empty MemoryViewRepository.
func NewMemoryViewRepository() *MemoryViewRepository {
	return &MemoryViewRepository{views: make(map[uuid.UUID]view.Instance)}
}

// Save registers a new view.
func (r *MemoryViewRepository) Save(_ context.Context, v view.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.views[v.ID()]; exists {
		return fmt.Errorf("failed to save view %s: already registered", v.ID())
	}
	r.views[v.ID()] = v
	r.order = append(r.order, v.ID())
	return nil
}

// FindByID retrieves a view by its unique identifier.
func (r *MemoryViewRepository) FindByID(_ context.Context, id uuid.UUID) (view.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", view.ErrViewNotFound, id)
	}
	return v, nil
}

// Delete unregisters a view and returns it.
func (r *MemoryViewRepository) Delete(_ context.Context, id uuid.UUID) (view.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", view.ErrViewNotFound, id)
	}
	delete(r.views, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return v, nil
}

// List returns every registered view in registration order.
func (r *MemoryViewRepository) List(_ context.Context) ([]view.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]view.Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.views[id])
	}
	return out, nil
}

// Count returns the number of registered views.
func (r *MemoryViewRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views), nil
}
