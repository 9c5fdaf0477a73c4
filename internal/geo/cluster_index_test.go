package geo

import (
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"rabmap/internal/domain/entities"
)

func testFeature(id string, lat, lng float64) entities.PointFeature {
	return entities.PointFeature{
		ID:       id,
		Layer:    entities.LayerCamera,
		Location: entities.NewLocation(lat, lng),
	}
}

// Wide enough to contain the whole island and the mainland coast.
var rabBound = orb.Bound{
	Min: orb.Point{14.0, 44.0},
	Max: orb.Point{15.5, 45.5},
}

func TestProjectUnproject_RoundTrip(t *testing.T) {
	coords := [][2]float64{
		{14.7611, 44.7569},
		{0, 0},
		{-122.4194, 37.7749},
		{179.9, -85},
	}

	for _, c := range coords {
		x, y := Project(c[0], c[1])
		lng, lat := Unproject(x, y)
		if math.Abs(lng-c[0]) > 1e-9 || math.Abs(lat-c[1]) > 1e-6 {
			t.Errorf("Round trip of (%v, %v) gave (%v, %v)", c[0], c[1], lng, lat)
		}
	}
}

func TestClusterIndex_MergesNearbyAtLowZoom(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())

	// Two cameras ~200m apart in Rab town, one far away on the mainland.
	features := []entities.PointFeature{
		testFeature("cam-1", 44.7569, 14.7611),
		testFeature("cam-2", 44.7585, 14.7625),
		testFeature("cam-3", 44.9000, 15.2000),
	}
	index.Load(features, "v1")

	nodes := index.Query(rabBound, 8)
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 nodes at zoom 8 (one cluster, one point), got %d", len(nodes))
	}

	var cluster *Node
	var single *Node
	for i := range nodes {
		if nodes[i].IsCluster() {
			cluster = &nodes[i]
		} else {
			single = &nodes[i]
		}
	}
	if cluster == nil || single == nil {
		t.Fatal("Expected exactly one cluster and one individual point")
	}
	if cluster.Count != 2 {
		t.Errorf("Expected cluster of 2, got %d", cluster.Count)
	}
	if single.Feature.ID != "cam-3" {
		t.Errorf("Expected cam-3 to stay individual, got %s", single.Feature.ID)
	}

	// Cluster centroid sits between its members.
	if cluster.Location.Lat < 44.7569 || cluster.Location.Lat > 44.7585 {
		t.Errorf("Cluster latitude %v outside member range", cluster.Location.Lat)
	}
}

func TestClusterIndex_NoClusteringPastMaxZoom(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())
	features := []entities.PointFeature{
		testFeature("cam-1", 44.7569, 14.7611),
		testFeature("cam-2", 44.7570, 14.7612),
	}
	index.Load(features, "v1")

	// Zoom 17 is past MaxZoom: raw features, never clusters.
	nodes := index.Query(rabBound, 17)
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 raw features past max zoom, got %d", len(nodes))
	}
	for _, n := range nodes {
		if n.IsCluster() {
			t.Error("Expected no clusters past max zoom")
		}
	}
}

func TestClusterIndex_QueryFiltersByBounds(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())
	features := []entities.PointFeature{
		testFeature("inside", 44.7569, 14.7611),
		testFeature("outside", 45.8150, 15.9819), // Zagreb
	}
	index.Load(features, "v1")

	nodes := index.Query(rabBound, 17)
	if len(nodes) != 1 {
		t.Fatalf("Expected 1 node inside bounds, got %d", len(nodes))
	}
	if nodes[0].Feature.ID != "inside" {
		t.Errorf("Expected the inside feature, got %s", nodes[0].Feature.ID)
	}
}

func TestClusterIndex_FingerprintGate(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())
	features := []entities.PointFeature{
		testFeature("cam-1", 44.7569, 14.7611),
		testFeature("cam-2", 44.7585, 14.7625),
	}

	if !index.Load(features, "v1") {
		t.Fatal("First load should rebuild")
	}

	before := index.Query(rabBound, 8)

	// Same fingerprint: no-op, cluster IDs survive.
	if index.Load(features, "v1") {
		t.Error("Load with unchanged fingerprint should be a no-op")
	}
	after := index.Query(rabBound, 8)

	if len(before) != len(after) {
		t.Fatalf("Node count changed across no-op load: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ClusterID != after[i].ClusterID {
			t.Errorf("Cluster ID changed across no-op load: %d vs %d",
				before[i].ClusterID, after[i].ClusterID)
		}
	}

	// Changed fingerprint: rebuilds.
	if !index.Load(features, "v2") {
		t.Error("Load with changed fingerprint should rebuild")
	}
}

func TestClusterIndex_Leaves(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())
	features := []entities.PointFeature{
		testFeature("cam-1", 44.7569, 14.7611),
		testFeature("cam-2", 44.7585, 14.7625),
		testFeature("cam-3", 44.7590, 14.7630),
	}
	index.Load(features, "v1")

	nodes := index.Query(rabBound, 8)
	if len(nodes) != 1 || !nodes[0].IsCluster() {
		t.Fatalf("Expected a single cluster at zoom 8, got %+v", nodes)
	}

	leaves := index.Leaves(nodes[0].ClusterID, 0)
	if len(leaves) != 3 {
		t.Fatalf("Expected 3 leaves, got %d", len(leaves))
	}
	seen := make(map[string]bool)
	for _, l := range leaves {
		seen[l.ID] = true
	}
	for _, id := range []string{"cam-1", "cam-2", "cam-3"} {
		if !seen[id] {
			t.Errorf("Missing leaf %s", id)
		}
	}

	limited := index.Leaves(nodes[0].ClusterID, 2)
	if len(limited) != 2 {
		t.Errorf("Expected limit to cap leaves at 2, got %d", len(limited))
	}
}

func TestClusterIndex_ExpansionZoom(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())

	// Very close pair: stays merged deep into the pyramid.
	features := []entities.PointFeature{
		testFeature("cam-1", 44.75690, 14.76110),
		testFeature("cam-2", 44.75691, 14.76111),
	}
	index.Load(features, "v1")

	nodes := index.Query(rabBound, 0)
	if len(nodes) != 1 || !nodes[0].IsCluster() {
		t.Fatalf("Expected one cluster at zoom 0, got %+v", nodes)
	}

	zoom := index.ExpansionZoom(nodes[0].ClusterID)
	if zoom <= 0 || zoom > 17 {
		t.Fatalf("Expansion zoom %d outside pyramid range", zoom)
	}

	// At the expansion zoom the members must actually be apart.
	split := index.Query(rabBound, zoom)
	if len(split) < 2 {
		t.Errorf("Expected cluster to split at expansion zoom %d, got %d nodes", zoom, len(split))
	}

	// Unknown ID falls back to the finest level.
	if z := index.ExpansionZoom(999999999); z != 17 {
		t.Errorf("Expected fallback expansion zoom 17, got %d", z)
	}
}

func TestClusterIndex_CountsAreConserved(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())

	var features []entities.PointFeature
	for i := 0; i < 40; i++ {
		// Grid across the island; some cells land close enough to merge.
		lat := 44.70 + float64(i%8)*0.01
		lng := 14.74 + float64(i/8)*0.01
		features = append(features, testFeature(fmt.Sprintf("f-%d", i), lat, lng))
	}
	index.Load(features, "v1")

	for zoom := 0; zoom <= 17; zoom++ {
		total := 0
		for _, n := range index.Query(rabBound, zoom) {
			total += n.Count
		}
		if total != len(features) {
			t.Errorf("Zoom %d: leaf count %d, expected %d", zoom, total, len(features))
		}
	}
}

func TestClusterIndex_EmptyAndUnloaded(t *testing.T) {
	index := NewClusterIndex(NewDefaultClusterOptions())

	if nodes := index.Query(rabBound, 10); nodes != nil {
		t.Errorf("Expected nil from unloaded index, got %d nodes", len(nodes))
	}

	index.Load(nil, "empty")
	if nodes := index.Query(rabBound, 10); len(nodes) != 0 {
		t.Errorf("Expected no nodes from empty index, got %d", len(nodes))
	}
	if index.Count() != 0 {
		t.Errorf("Expected count 0, got %d", index.Count())
	}
}
