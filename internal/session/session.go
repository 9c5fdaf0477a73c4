// Package session holds the mutable state of one running map: the marker
// registry, the cluster index, the current dataset snapshot, viewport, and
// user selection. Services coordinate exclusively through this state, which
// keeps them free of dependencies on one another.
package session

import (
	"sync"

	"github.com/paulmach/orb"

	"rabmap/internal/domain/entities"
	"rabmap/internal/geo"
	"rabmap/internal/repository"
)

// Viewport is the visible map window plus its zoom level.
type Viewport struct {
	Bound orb.Bound
	Zoom  int
}

// Session is the shared state container. The registry and index carry their
// own locks; the session mutex covers only the plain fields here.
type Session struct {
	Registry repository.MarkerRegistry
	Index    *geo.ClusterIndex

	mu              sync.RWMutex
	snapshot        entities.Snapshot
	filters         entities.LayerFilters
	scope           entities.Scope
	clustering      bool
	viewport        Viewport
	interacting     bool
	pendingRefresh  bool
	suspended       bool
	expandedCluster string
}

// New creates a session with the default selection: all layers on, regional
// scope, clustering enabled.
func New(registry repository.MarkerRegistry, index *geo.ClusterIndex, clustering bool) *Session {
	return &Session{
		Registry:   registry,
		Index:      index,
		filters:    entities.AllLayersEnabled(),
		scope:      entities.ScopeRegional,
		clustering: clustering,
		viewport: Viewport{
			// Whole-island default until the first client reports its view.
			Bound: orb.Bound{Min: orb.Point{14.0, 44.0}, Max: orb.Point{15.5, 45.5}},
			Zoom:  11,
		},
	}
}

func (s *Session) Snapshot() entities.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) SetSnapshot(snap entities.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

func (s *Session) Selection() (entities.LayerFilters, entities.Scope) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters, s.scope
}

func (s *Session) SetSelection(filters entities.LayerFilters, scope entities.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
	s.scope = scope
}

func (s *Session) ClusteringEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clustering
}

func (s *Session) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

func (s *Session) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = v
}

// SetInteracting flips the user-interaction flag. Leaving interaction
// reports whether a refresh was deferred while it was set; the caller is
// expected to run that refresh now.
func (s *Session) SetInteracting(interacting bool) (deferred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interacting = interacting
	if !interacting && s.pendingRefresh {
		s.pendingRefresh = false
		return true
	}
	return false
}

// DeferIfInteracting marks a refresh as pending when the user is mid-gesture
// and reports whether it was deferred.
func (s *Session) DeferIfInteracting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interacting {
		s.pendingRefresh = true
		return true
	}
	return false
}

func (s *Session) Interacting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interacting
}

func (s *Session) Suspended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspended
}

func (s *Session) SetSuspended(suspended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = suspended
}

// ExpandedCluster tracks which cluster marker is currently spiderfied, empty
// when none is.
func (s *Session) ExpandedCluster() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expandedCluster
}

func (s *Session) SetExpandedCluster(markerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expandedCluster = markerID
}
