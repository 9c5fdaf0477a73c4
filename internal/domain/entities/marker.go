package entities

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrMarkerProtected is returned by Remove when a handle carries the
// do-not-remove flag. Callers holding deletion authority (the exclusion
// guard and the ferry simulator's deduplication) use ForceRemove instead.
var ErrMarkerProtected = errors.New("marker is remove-protected")

// MarkerLayer identifies which rendering layer owns a handle. The ferry
// lives in its own layer, isolated from everything the clustering machinery
// manages.
type MarkerLayer string

const (
	MarkerLayerCluster MarkerLayer = "cluster"
	MarkerLayerFerry   MarkerLayer = "ferry"
)

// MarkerHandle is one rendered marker. Handles are owned exclusively by the
// marker registry; the registry is the single source of truth for what is
// currently on the map. Handles are mutated in place on reconciliation
// (position/icon/popup) rather than recreated, to minimize churn.
//
// ID, layer and the flags are fixed before the handle enters the registry
// and never change afterward. Position, render and attachment keep changing
// for the handle's whole life — the ferry ticker, the integrity sweep and
// request handlers all touch the same handle concurrently — so those three
// sit behind the handle's own lock and are reachable only through accessors.
//
// Two-tier deletion authority: Remove respects the protection flag and is
// what ordinary reconciliation calls; ForceRemove bypasses it and is used
// only by the exclusion guard and the ferry deduplication path.
type MarkerHandle struct {
	ID            string
	Layer         MarkerLayer
	IsFerry       bool
	IsClusterized bool
	DoNotRemove   bool

	mu       sync.RWMutex
	location Location
	render   RenderMeta
	attached bool
}

// NewMarkerHandle creates an attached handle. Flags are set by the caller
// (the guard) before the handle enters the registry.
func NewMarkerHandle(id string, layer MarkerLayer, loc Location, render RenderMeta) *MarkerHandle {
	return &MarkerHandle{
		ID:       id,
		Layer:    layer,
		location: loc,
		render:   render,
		attached: true,
	}
}

// Attached reports whether the handle is still on the map. A detached
// handle is swept out of the registry at the end of the pass that detached it.
func (m *MarkerHandle) Attached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attached
}

// Location returns the marker's current position.
func (m *MarkerHandle) Location() Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.location
}

// Render returns the marker's current icon/popup metadata.
func (m *MarkerHandle) Render() RenderMeta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.render
}

// SetLocation repositions the marker in place (the cheap update path).
func (m *MarkerHandle) SetLocation(loc Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = loc
}

// SetRender swaps the icon/popup without recreating the handle.
func (m *MarkerHandle) SetRender(render RenderMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.render = render
}

// Remove detaches the marker unless it is remove-protected. The ferry
// marker always refuses this entry point.
func (m *MarkerHandle) Remove() error {
	if m.DoNotRemove {
		return ErrMarkerProtected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = false
	return nil
}

// ForceRemove detaches the marker regardless of protection. Privileged
// escape hatch for deduplication; never called from the diff path.
func (m *MarkerHandle) ForceRemove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = false
}

// MarshalJSON snapshots the handle under its lock so encoding (the debug
// marker dump) never races a concurrent tick or reconciliation.
func (m *MarkerHandle) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(struct {
		ID            string      `json:"id"`
		Layer         MarkerLayer `json:"layer"`
		Location      Location    `json:"location"`
		Render        RenderMeta  `json:"render"`
		IsFerry       bool        `json:"isFerry"`
		IsClusterized bool        `json:"isClusterized"`
		DoNotRemove   bool        `json:"doNotRemove"`
	}{m.ID, m.Layer, m.location, m.render, m.IsFerry, m.IsClusterized, m.DoNotRemove})
}
