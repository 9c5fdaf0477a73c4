package memory

import (
	"context"
	"sync"

	"rabmap/internal/domain/entities"
)

// PrefsRepository is the fallback preference store used when Redis is not
// configured. Missing entries resolve to the defaults rather than an error,
// matching the UI behavior for a first visit.
type PrefsRepository struct {
	mu    sync.RWMutex
	prefs map[string]entities.Prefs
}

func NewPrefsRepository() *PrefsRepository {
	return &PrefsRepository{
		prefs: make(map[string]entities.Prefs),
	}
}

func (r *PrefsRepository) Get(ctx context.Context, clientID string) (entities.Prefs, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, exists := r.prefs[clientID]; exists {
		return p, nil
	}
	return entities.DefaultPrefs(), nil
}

func (r *PrefsRepository) Set(ctx context.Context, clientID string, prefs entities.Prefs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs[clientID] = prefs
	return nil
}
