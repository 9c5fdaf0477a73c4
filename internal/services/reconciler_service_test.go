package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/internal/geo"
	"rabmap/internal/repository/memory"
	"rabmap/internal/session"
)

var wideBound = orb.Bound{Min: orb.Point{14.0, 44.0}, Max: orb.Point{15.5, 45.5}}

func newTestStack(clustering bool) (*ReconcilerService, *session.Session, *GuardService) {
	cfg := config.NewDefaultConfig()
	log := testLogger()
	registry := memory.NewMarkerRegistry()
	index := geo.NewClusterIndex(geo.NewDefaultClusterOptions())
	sess := session.New(registry, index, clustering)
	featureSvc := NewFeatureService(cfg, log)
	guard := NewGuardService(cfg, log, registry)
	return NewReconcilerService(cfg, log, sess, featureSvc, guard), sess, guard
}

// denseCameraSnapshot builds n cameras packed within a few meters, so any
// mid-level zoom sees them as one cluster.
func denseCameraSnapshot(n int) entities.Snapshot {
	var snap entities.Snapshot
	for i := 0; i < n; i++ {
		snap.Island.Cameras = append(snap.Island.Cameras, entities.Camera{
			ID:    fmt.Sprintf("cam-%d", i),
			Title: fmt.Sprintf("Kamera %d", i),
			Lat:   floatPtr(44.75690 + float64(i)*0.00001),
			Lng:   floatPtr(14.76110 + float64(i)*0.00001),
		})
	}
	return snap
}

func markerIDs(t *testing.T, sess *session.Session) []string {
	t.Helper()
	all, err := sess.Registry.All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	var ids []string
	for _, m := range all {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestReconciler_CreatesMarkersForFeatures(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(testSnapshot())
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 17})

	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// 3 cameras + 1 merged counter at raw zoom, regional scope.
	count, _ := sess.Registry.Count(ctx)
	if count != 4 {
		t.Fatalf("Expected 4 markers, got %d: %v", count, markerIDs(t, sess))
	}
	if _, err := sess.Registry.Get(ctx, "point:camera:cam-rab-1"); err != nil {
		t.Error("Expected an individual camera marker")
	}
}

func TestReconciler_RemovesDeselectedLayers(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(testSnapshot())
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 17})
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	filters := entities.AllLayersEnabled()
	filters.Cameras = false
	sess.SetSelection(filters, entities.ScopeRegional)
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Second refresh failed: %v", err)
	}

	for _, id := range markerIDs(t, sess) {
		if strings.HasPrefix(id, "point:camera:") {
			t.Errorf("Camera marker %s should have been removed", id)
		}
	}
}

func TestReconciler_StableAcrossRedundantRefreshes(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(denseCameraSnapshot(5))
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 10})

	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	first := markerIDs(t, sess)

	// Nothing changed: the index must not rebuild, so cluster marker IDs
	// (which are assigned fresh on every real rebuild) stay identical.
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Second refresh failed: %v", err)
	}
	second := markerIDs(t, sess)

	if len(first) != len(second) {
		t.Fatalf("Marker count changed: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Marker ID changed across redundant refresh: %s vs %s", first[i], second[i])
		}
	}
}

func TestReconciler_StacksCoLocatedCameras(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	var snap entities.Snapshot
	for i := 0; i < 3; i++ {
		snap.Island.Cameras = append(snap.Island.Cameras, entities.Camera{
			ID:    fmt.Sprintf("mast-cam-%d", i),
			Title: fmt.Sprintf("Smjer %d", i),
			Lat:   floatPtr(44.756900),
			Lng:   floatPtr(14.761100),
		})
	}
	sess.SetSnapshot(snap)
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 17})

	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	count, _ := sess.Registry.Count(ctx)
	if count != 1 {
		t.Fatalf("Expected the 3 cameras to collapse into 1 group marker, got %d: %v",
			count, markerIDs(t, sess))
	}

	group, err := sess.Registry.Get(ctx, "group:44.756900:14.761100")
	if err != nil {
		t.Fatalf("Expected the group marker, got %v (markers: %v)", err, markerIDs(t, sess))
	}
	popup := group.Render().PopupHTML
	if !strings.Contains(popup, `data-count="3"`) {
		t.Error("Group popup should carry all three cameras")
	}
	if !strings.Contains(popup, "3 kamere na ovoj lokaciji") {
		t.Error("Group popup should open with the camera count header")
	}
	for i := 0; i < 3; i++ {
		if strings.Contains(popup, "Smjer "+fmt.Sprint(i)) == false {
			t.Errorf("Group popup missing camera %d", i)
		}
	}
}

func TestReconciler_SpiderfySmallCluster(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(denseCameraSnapshot(45))
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 10})
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var clusterID string
	for _, id := range markerIDs(t, sess) {
		if strings.HasPrefix(id, "cluster:") {
			clusterID = id
			break
		}
	}
	if clusterID == "" {
		t.Fatalf("Expected a cluster marker, got %v", markerIDs(t, sess))
	}

	result, err := rec.ActivateCluster(ctx, clusterID)
	if err != nil {
		t.Fatalf("ActivateCluster failed: %v", err)
	}
	if result.Action != "spiderfy" {
		t.Fatalf("Expected spiderfy for 45 leaves, got %s", result.Action)
	}
	if len(result.MarkerIDs) != 45 {
		t.Errorf("Expected 45 spider legs, got %d", len(result.MarkerIDs))
	}

	// The bubble is gone while exploded.
	if _, err := sess.Registry.Get(ctx, clusterID); err == nil {
		t.Error("Cluster marker should be removed while spiderfied")
	}
	if sess.ExpandedCluster() != clusterID {
		t.Error("Session should record the expanded cluster")
	}

	// A reconciliation pass dissolves the spiderfy and restores the bubble.
	if err := rec.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if _, err := sess.Registry.Get(ctx, clusterID); err != nil {
		t.Error("Cluster marker should be restored after reconciliation")
	}
	for _, id := range markerIDs(t, sess) {
		if strings.HasPrefix(id, "spider:") {
			t.Errorf("Spider leg %s should be dissolved", id)
		}
	}
	if sess.ExpandedCluster() != "" {
		t.Error("Expanded state should be cleared")
	}
}

func TestReconciler_BigClusterZoomsInstead(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(denseCameraSnapshot(75))
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 10})
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var clusterID string
	for _, id := range markerIDs(t, sess) {
		if strings.HasPrefix(id, "cluster:") {
			clusterID = id
			break
		}
	}
	if clusterID == "" {
		t.Fatalf("Expected a cluster marker, got %v", markerIDs(t, sess))
	}

	result, err := rec.ActivateCluster(ctx, clusterID)
	if err != nil {
		t.Fatalf("ActivateCluster failed: %v", err)
	}
	if result.Action != "zoom" {
		t.Fatalf("Expected zoom action for 75 leaves, got %s", result.Action)
	}
	if result.Zoom <= 10 || result.Zoom > 17 {
		t.Errorf("Expansion zoom %d outside sensible range", result.Zoom)
	}
	// The bubble stays when zooming is the answer.
	if _, err := sess.Registry.Get(ctx, clusterID); err != nil {
		t.Error("Cluster marker must survive a zoom activation")
	}
}

func TestReconciler_DisabledClusteringRendersRawPoints(t *testing.T) {
	rec, sess, _ := newTestStack(false)
	ctx := context.Background()

	sess.SetSnapshot(denseCameraSnapshot(10))
	// Zoom 8 would normally cluster these, but clustering is off.
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 8})

	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	for _, id := range markerIDs(t, sess) {
		if strings.HasPrefix(id, "cluster:") {
			t.Errorf("Clustering disabled but cluster marker %s exists", id)
		}
	}
	count, _ := sess.Registry.Count(ctx)
	if count != 10 {
		t.Errorf("Expected 10 raw point markers, got %d", count)
	}
}

func TestReconciler_DefersWhileInteracting(t *testing.T) {
	rec, sess, _ := newTestStack(true)
	ctx := context.Background()

	sess.SetSnapshot(testSnapshot())
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 17})
	sess.SetInteracting(true)

	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if count, _ := sess.Registry.Count(ctx); count != 0 {
		t.Fatalf("Refresh during interaction should be deferred, got %d markers", count)
	}

	if err := rec.EndInteraction(ctx); err != nil {
		t.Fatalf("EndInteraction failed: %v", err)
	}
	if count, _ := sess.Registry.Count(ctx); count == 0 {
		t.Error("Deferred refresh should run when interaction ends")
	}
}

func TestReconciler_NeverPlacesMarkersOnFerry(t *testing.T) {
	rec, sess, guard := newTestStack(true)
	ctx := context.Background()

	// Ferry parked exactly on one of the cameras.
	ferryLoc := entities.NewLocation(44.7569, 14.7611)
	if _, err := guard.CreateGuarded(ctx, "ferry", entities.MarkerLayerFerry, ferryLoc,
		entities.RenderMeta{IconKind: "ferry"}, MarkerOptions{IsFerry: true, DoNotRemove: true}); err != nil {
		t.Fatalf("Ferry creation failed: %v", err)
	}

	sess.SetSnapshot(testSnapshot())
	sess.SetViewport(session.Viewport{Bound: wideBound, Zoom: 17})
	if err := rec.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	all, _ := sess.Registry.All(ctx)
	for _, m := range all {
		if m.IsFerry {
			continue
		}
		loc := m.Location()
		dLat := loc.Lat - ferryLoc.Lat
		dLng := loc.Lng - ferryLoc.Lng
		if dLat < 0 {
			dLat = -dLat
		}
		if dLng < 0 {
			dLng = -dLng
		}
		if dLat <= 0.0005 && dLng <= 0.0005 {
			t.Errorf("Marker %s sits inside the ferry exclusion zone", m.ID)
		}
	}
}
