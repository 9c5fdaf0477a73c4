package geo

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"rabmap/internal/domain/entities"
)

// ClusterOptions tunes the cluster pyramid. The defaults match the map UI:
// an 80px merge radius on 512px tiles, clusters of two or more.
type ClusterOptions struct {
	MinZoom   int
	MaxZoom   int
	Radius    float64 // merge radius in pixels at the given Extent
	Extent    float64 // tile extent in pixels
	MinPoints int     // minimum leaves before a cluster forms
}

// NewDefaultClusterOptions returns the production tuning.
func NewDefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		MinZoom:   0,
		MaxZoom:   16,
		Radius:    80,
		Extent:    512,
		MinPoints: 2,
	}
}

// Node is one query result: either a cluster bubble (Count > 1, ClusterID
// set) or an individual feature passed through unclustered (Feature set).
type Node struct {
	ClusterID uint32
	Count     int
	Location  entities.Location
	Feature   *entities.PointFeature
}

// IsCluster reports whether the node is a merged bubble rather than a single
// feature.
func (n Node) IsCluster() bool {
	return n.Feature == nil
}

// levelNode is the internal per-zoom representation. Coordinates are
// normalized web mercator; children index into the level one zoom finer.
type levelNode struct {
	x, y       float64
	id         uint32 // cluster ID, zero for individual features
	count      int
	featureIdx int // index into features for leaves, -1 for clusters
	children   []int
}

// ClusterIndex is the zoom-aware spatial index behind the map's marker set.
// Load projects every feature into normalized mercator space once, then
// builds one clustering level per zoom from the finest level down: at each
// coarser zoom the merge radius doubles, so nearby nodes greedily collapse
// into weighted-centroid clusters. Queries are then a flat scan of one
// precomputed level.
//
// Go Learning Note — sync.RWMutex:
// RWMutex provides read-write locking. Multiple goroutines can hold a read
// lock simultaneously (RLock), but a write lock (Lock) is exclusive. This is
// perfect for the index: viewport queries arrive constantly, rebuilds only
// when the dataset or filters actually change.
type ClusterIndex struct {
	mu          sync.RWMutex
	opts        ClusterOptions
	features    []entities.PointFeature
	levels      [][]levelNode     // indexed by zoom, [MinZoom .. MaxZoom+1]
	lookup      map[uint32][2]int // cluster ID -> {creation zoom, index}
	fingerprint string
	loaded      bool
}

// NewClusterIndex creates an empty index with the given tuning.
func NewClusterIndex(opts ClusterOptions) *ClusterIndex {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = 16
	}
	if opts.Extent <= 0 {
		opts.Extent = 512
	}
	if opts.Radius <= 0 {
		opts.Radius = 80
	}
	if opts.MinPoints <= 0 {
		opts.MinPoints = 2
	}
	return &ClusterIndex{opts: opts}
}

// Load replaces the index contents and rebuilds the cluster pyramid. The
// fingerprint is an opaque digest of everything the feature set depends on
// (datasets, filters, scope); when it matches the previous load the call is
// a no-op and Load reports false. Skipping the rebuild is what keeps cluster
// IDs stable across redundant refreshes — every real rebuild assigns fresh IDs.
func (c *ClusterIndex) Load(features []entities.PointFeature, fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && fingerprint == c.fingerprint {
		return false
	}

	c.features = make([]entities.PointFeature, len(features))
	copy(c.features, features)
	c.levels = make([][]levelNode, c.opts.MaxZoom+2)
	c.lookup = make(map[uint32][2]int)

	// The finest level holds every feature individually.
	leaves := make([]levelNode, len(c.features))
	for i, f := range c.features {
		x, y := Project(f.Location.Lng, f.Location.Lat)
		leaves[i] = levelNode{x: x, y: y, count: 1, featureIdx: i}
	}
	c.levels[c.opts.MaxZoom+1] = leaves

	for z := c.opts.MaxZoom; z >= c.opts.MinZoom; z-- {
		c.levels[z] = c.buildLevel(c.levels[z+1], z)
	}

	c.fingerprint = fingerprint
	c.loaded = true
	return true
}

// buildLevel greedily merges the finer level's nodes at this zoom's radius.
// Iteration order is the input slice order, so rebuilding from identical
// input produces an identical pyramid shape.
func (c *ClusterIndex) buildLevel(prev []levelNode, zoom int) []levelNode {
	r := c.opts.Radius / (c.opts.Extent * math.Pow(2, float64(zoom)))
	r2 := r * r

	level := make([]levelNode, 0, len(prev))
	used := make([]bool, len(prev))

	for i := range prev {
		if used[i] {
			continue
		}
		used[i] = true

		group := []int{i}
		count := prev[i].count
		for j := i + 1; j < len(prev); j++ {
			if used[j] {
				continue
			}
			dx := prev[j].x - prev[i].x
			dy := prev[j].y - prev[i].y
			if dx*dx+dy*dy <= r2 {
				used[j] = true
				group = append(group, j)
				count += prev[j].count
			}
		}

		if len(group) > 1 && count >= c.opts.MinPoints {
			var sumX, sumY float64
			for _, j := range group {
				w := float64(prev[j].count)
				sumX += prev[j].x * w
				sumY += prev[j].y * w
			}
			inv := 1 / float64(count)
			node := levelNode{
				x:          sumX * inv,
				y:          sumY * inv,
				id:         uuid.New().ID(),
				count:      count,
				featureIdx: -1,
				children:   group,
			}
			c.lookup[node.id] = [2]int{zoom, len(level)}
			level = append(level, node)
			continue
		}

		// Too small to merge: each member passes through unchanged, keeping
		// its identity, with a single-child link for leaf collection.
		for _, j := range group {
			node := prev[j]
			node.children = []int{j}
			level = append(level, node)
		}
	}

	return level
}

// Query returns the visible nodes for a viewport at the given zoom. Zoom is
// clamped to the pyramid range; querying past MaxZoom returns the raw
// feature level with no clustering at all.
func (c *ClusterIndex) Query(bound orb.Bound, zoom int) []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded {
		return nil
	}
	if zoom < c.opts.MinZoom {
		zoom = c.opts.MinZoom
	}
	if zoom > c.opts.MaxZoom+1 {
		zoom = c.opts.MaxZoom + 1
	}

	// Mercator y grows southward, so the bound's north edge becomes minY.
	minX, minY := Project(bound.Min.Lon(), bound.Max.Lat())
	maxX, maxY := Project(bound.Max.Lon(), bound.Min.Lat())

	var out []Node
	for i := range c.levels[zoom] {
		n := &c.levels[zoom][i]
		if n.x < minX || n.x > maxX || n.y < minY || n.y > maxY {
			continue
		}
		out = append(out, c.toNode(n))
	}
	return out
}

func (c *ClusterIndex) toNode(n *levelNode) Node {
	if n.featureIdx >= 0 {
		f := &c.features[n.featureIdx]
		// Leaves keep their exact source coordinates rather than a
		// projection round trip.
		return Node{Count: 1, Location: f.Location, Feature: f}
	}
	lng, lat := Unproject(n.x, n.y)
	return Node{
		ClusterID: n.id,
		Count:     n.count,
		Location:  entities.NewLocation(lat, lng),
	}
}

// Leaves returns up to limit features underneath a cluster, in pyramid
// order. limit <= 0 means no limit.
func (c *ClusterIndex) Leaves(clusterID uint32, limit int) []entities.PointFeature {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.lookup[clusterID]
	if !ok {
		return nil
	}
	var out []entities.PointFeature
	c.collectLeaves(ref[0], ref[1], limit, &out)
	return out
}

func (c *ClusterIndex) collectLeaves(zoom, idx, limit int, out *[]entities.PointFeature) {
	node := &c.levels[zoom][idx]
	if node.featureIdx >= 0 {
		*out = append(*out, c.features[node.featureIdx])
		return
	}
	for _, child := range node.children {
		if limit > 0 && len(*out) >= limit {
			return
		}
		c.collectLeaves(zoom+1, child, limit, out)
	}
}

// ExpansionZoom returns the first zoom at which the cluster splits apart —
// the zoom to fly to when the user clicks a bubble too big to spiderfy.
// Clusters are recorded at the finest zoom where they form, and by
// construction they have at least two children one level finer.
func (c *ClusterIndex) ExpansionZoom(clusterID uint32) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.lookup[clusterID]
	if !ok {
		return c.opts.MaxZoom + 1
	}
	zoom := ref[0] + 1
	if zoom > c.opts.MaxZoom+1 {
		zoom = c.opts.MaxZoom + 1
	}
	return zoom
}

// MaxZoom returns the finest clustered zoom; querying one level past it
// returns raw features.
func (c *ClusterIndex) MaxZoom() int {
	return c.opts.MaxZoom
}

// Count returns the number of indexed features.
func (c *ClusterIndex) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.features)
}

// Fingerprint returns the digest of the last accepted Load.
func (c *ClusterIndex) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint
}
