package memory

import (
	"context"
	"testing"

	"rabmap/internal/domain/entities"
)

func newTestHandle(id string, layer entities.MarkerLayer) *entities.MarkerHandle {
	return entities.NewMarkerHandle(id, layer, entities.NewLocation(44.75, 14.76), entities.RenderMeta{})
}

func TestMarkerRegistry_PutAndGet(t *testing.T) {
	registry := NewMarkerRegistry()
	ctx := context.Background()

	m := newTestHandle("point:camera:cam-1", entities.MarkerLayerCluster)
	if err := registry.Put(ctx, m); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := registry.Get(ctx, "point:camera:cam-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != m {
		t.Error("Expected the same handle instance back")
	}
}

func TestMarkerRegistry_RejectsDuplicates(t *testing.T) {
	registry := NewMarkerRegistry()
	ctx := context.Background()

	if err := registry.Put(ctx, newTestHandle("cluster:1", entities.MarkerLayerCluster)); err != nil {
		t.Fatalf("First Put failed: %v", err)
	}
	if err := registry.Put(ctx, newTestHandle("cluster:1", entities.MarkerLayerCluster)); err != ErrMarkerExists {
		t.Errorf("Expected ErrMarkerExists, got %v", err)
	}
}

func TestMarkerRegistry_GetMissing(t *testing.T) {
	registry := NewMarkerRegistry()

	if _, err := registry.Get(context.Background(), "nope"); err != ErrMarkerNotFound {
		t.Errorf("Expected ErrMarkerNotFound, got %v", err)
	}
}

func TestMarkerRegistry_ByLayer(t *testing.T) {
	registry := NewMarkerRegistry()
	ctx := context.Background()

	registry.Put(ctx, newTestHandle("cluster:1", entities.MarkerLayerCluster))
	registry.Put(ctx, newTestHandle("cluster:2", entities.MarkerLayerCluster))
	registry.Put(ctx, newTestHandle("ferry", entities.MarkerLayerFerry))

	clusters, _ := registry.ByLayer(ctx, entities.MarkerLayerCluster)
	if len(clusters) != 2 {
		t.Errorf("Expected 2 cluster-layer markers, got %d", len(clusters))
	}
	ferries, _ := registry.ByLayer(ctx, entities.MarkerLayerFerry)
	if len(ferries) != 1 {
		t.Errorf("Expected 1 ferry-layer marker, got %d", len(ferries))
	}
}

func TestMarkerRegistry_SweepDetached(t *testing.T) {
	registry := NewMarkerRegistry()
	ctx := context.Background()

	keep := newTestHandle("cluster:keep", entities.MarkerLayerCluster)
	drop := newTestHandle("cluster:drop", entities.MarkerLayerCluster)
	registry.Put(ctx, keep)
	registry.Put(ctx, drop)

	if err := drop.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	swept, err := registry.SweepDetached(ctx)
	if err != nil {
		t.Fatalf("SweepDetached failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("Expected 1 swept, got %d", swept)
	}

	if count, _ := registry.Count(ctx); count != 1 {
		t.Errorf("Expected 1 remaining marker, got %d", count)
	}
	if _, err := registry.Get(ctx, "cluster:drop"); err != ErrMarkerNotFound {
		t.Error("Detached marker should be gone after sweep")
	}
}

func TestMarkerRegistry_ProtectedHandleSurvivesRemove(t *testing.T) {
	registry := NewMarkerRegistry()
	ctx := context.Background()

	ferry := newTestHandle("ferry", entities.MarkerLayerFerry)
	ferry.DoNotRemove = true
	registry.Put(ctx, ferry)

	if err := ferry.Remove(); err != entities.ErrMarkerProtected {
		t.Fatalf("Expected ErrMarkerProtected, got %v", err)
	}

	swept, _ := registry.SweepDetached(ctx)
	if swept != 0 {
		t.Errorf("Protected marker must not be swept, swept %d", swept)
	}
	if !ferry.Attached() {
		t.Error("Protected marker should still be attached")
	}
}

func TestPrefsRepository_DefaultsForUnknownClient(t *testing.T) {
	repo := NewPrefsRepository()
	ctx := context.Background()

	prefs, err := repo.Get(ctx, "first-visit")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if prefs.Scope != entities.ScopeRegional {
		t.Errorf("Expected regional default scope, got %s", prefs.Scope)
	}
	if !prefs.Layers.Cameras || !prefs.Layers.SeaQuality {
		t.Error("Expected all layers enabled by default")
	}

	custom := prefs
	custom.Scope = entities.ScopeLocal
	custom.Layers.Cameras = false
	if err := repo.Set(ctx, "first-visit", custom); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, _ := repo.Get(ctx, "first-visit")
	if got.Scope != entities.ScopeLocal || got.Layers.Cameras {
		t.Errorf("Round trip lost changes: %+v", got)
	}
}
