package repository

import (
	"context"

	"rabmap/internal/domain/entities"
)

// MarkerRegistry is the single source of truth for every marker currently on
// the map. All creation goes through the exclusion guard, which is the only
// component allowed to call Put.
type MarkerRegistry interface {
	Put(ctx context.Context, marker *entities.MarkerHandle) error
	Get(ctx context.Context, id string) (*entities.MarkerHandle, error)
	All(ctx context.Context) ([]*entities.MarkerHandle, error)
	ByLayer(ctx context.Context, layer entities.MarkerLayer) ([]*entities.MarkerHandle, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	SweepDetached(ctx context.Context) (int, error)
}

// PrefsStore persists user layer/scope selections across sessions.
type PrefsStore interface {
	Get(ctx context.Context, clientID string) (entities.Prefs, error)
	Set(ctx context.Context, clientID string, prefs entities.Prefs) error
}
