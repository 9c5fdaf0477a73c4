package memory

import (
	"context"
	"errors"
	"sync"

	"rabmap/internal/domain/entities"
)

var (
	ErrMarkerNotFound = errors.New("marker not found")
	ErrMarkerExists   = errors.New("marker already registered")
)

// MarkerRegistry is the in-memory marker store. One instance backs the whole
// map: the reconciler diffs against it, the exclusion guard inserts through
// it, the integrity sweep walks it.
type MarkerRegistry struct {
	mu      sync.RWMutex
	markers map[string]*entities.MarkerHandle
}

func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{
		markers: make(map[string]*entities.MarkerHandle),
	}
}

// Put registers a handle. Duplicate IDs are rejected so a double-created
// marker surfaces immediately instead of silently shadowing its twin.
func (r *MarkerRegistry) Put(ctx context.Context, marker *entities.MarkerHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markers[marker.ID]; exists {
		return ErrMarkerExists
	}
	r.markers[marker.ID] = marker
	return nil
}

func (r *MarkerRegistry) Get(ctx context.Context, id string) (*entities.MarkerHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	marker, exists := r.markers[id]
	if !exists {
		return nil, ErrMarkerNotFound
	}
	return marker, nil
}

func (r *MarkerRegistry) All(ctx context.Context) ([]*entities.MarkerHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.MarkerHandle, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, m)
	}
	return out, nil
}

func (r *MarkerRegistry) ByLayer(ctx context.Context, layer entities.MarkerLayer) ([]*entities.MarkerHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.MarkerHandle
	for _, m := range r.markers {
		if m.Layer == layer {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MarkerRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markers[id]; !exists {
		return ErrMarkerNotFound
	}
	delete(r.markers, id)
	return nil
}

func (r *MarkerRegistry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers), nil
}

// SweepDetached drops every handle whose Remove/ForceRemove already ran,
// returning how many were swept. Called at the end of a reconciliation pass
// so the registry never carries detached handles between passes.
func (r *MarkerRegistry) SweepDetached(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for id, m := range r.markers {
		if !m.Attached() {
			delete(r.markers, id)
			swept++
		}
	}
	return swept, nil
}
