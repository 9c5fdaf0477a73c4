package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/internal/geo"
	"rabmap/internal/session"
	"rabmap/pkg/utils"
)

// desiredMarker is one entry of the target set a reconciliation pass works
// toward.
type desiredMarker struct {
	loc         entities.Location
	render      entities.RenderMeta
	clusterized bool
}

// ActivationResult tells the client what happened when it clicked a cluster:
// either the cluster exploded into spider legs, or it was too big and the
// client should fly to the expansion zoom instead.
type ActivationResult struct {
	Action    string   `json:"action"` // "spiderfy" or "zoom"
	Zoom      int      `json:"zoom,omitempty"`
	MarkerIDs []string `json:"markerIds,omitempty"`
}

// ReconcilerService drives the render pipeline: rebuild the feature set and
// index when their fingerprint changes, query the index for the viewport,
// then diff the query result against the marker registry with minimal churn.
// It also owns the stacked-marker and spiderfy sub-states.
type ReconcilerService struct {
	cfg      *config.Config
	log      *slog.Logger
	sess     *session.Session
	features *FeatureService
	guard    *GuardService
}

func NewReconcilerService(
	cfg *config.Config,
	log *slog.Logger,
	sess *session.Session,
	features *FeatureService,
	guard *GuardService,
) *ReconcilerService {
	return &ReconcilerService{cfg: cfg, log: log, sess: sess, features: features, guard: guard}
}

// Refresh runs the full pipeline. While the user is mid pan/zoom the refresh
// is deferred; EndInteraction replays it.
func (r *ReconcilerService) Refresh(ctx context.Context) error {
	if r.sess.DeferIfInteracting() {
		r.log.Debug("refresh deferred, user interacting")
		return nil
	}

	snap := r.sess.Snapshot()
	filters, scope := r.sess.Selection()

	fingerprint := r.features.Fingerprint(snap, filters, scope)
	if r.sess.Index.Fingerprint() != fingerprint {
		var ferryAt *entities.Location
		if ferry := r.guard.ferryHandle(ctx); ferry != nil {
			loc := ferry.Location()
			ferryAt = &loc
		}
		feats := r.features.BuildFeatures(snap, filters, scope, ferryAt)
		if r.sess.Index.Load(feats, fingerprint) {
			r.log.Info("cluster index rebuilt", "features", len(feats))
		}
	}

	return r.Reconcile(ctx)
}

// EndInteraction clears the interaction flag and force-applies any refresh
// that was deferred during the gesture.
func (r *ReconcilerService) EndInteraction(ctx context.Context) error {
	if r.sess.SetInteracting(false) {
		return r.Refresh(ctx)
	}
	return r.Reconcile(ctx)
}

// Reconcile diffs the current viewport query against the registry. Existing
// handles are moved in place, missing ones are created through the guard,
// and everything no longer wanted is removed — ferry-protected handles
// excepted. Creation failures are swallowed per feature so one bad record
// never aborts the pass.
func (r *ReconcilerService) Reconcile(ctx context.Context) error {
	vp := r.sess.Viewport()

	zoom := vp.Zoom
	if !r.sess.ClusteringEnabled() {
		// Raw feature level: every point renders individually.
		zoom = r.cfg.Map.MaxZoom + 1
	}
	nodes := r.sess.Index.Query(vp.Bound, zoom)

	targets := r.buildTargets(nodes)

	// Any spiderfy is implicitly dissolved: spider legs are never in the
	// target set, and the original cluster marker is.
	r.sess.SetExpandedCluster("")

	created, updated := 0, 0
	for id, want := range targets {
		existing, err := r.sess.Registry.Get(ctx, id)
		if err == nil {
			existing.SetLocation(want.loc)
			existing.SetRender(want.render)
			updated++
			continue
		}

		_, err = r.guard.CreateGuarded(ctx, id, entities.MarkerLayerCluster, want.loc, want.render, MarkerOptions{
			IsClusterized: want.clusterized,
		})
		if err != nil {
			r.log.Debug("marker creation skipped", "id", id, "error", err)
			continue
		}
		created++
	}

	// Removal pass over the cluster layer only; the ferry layer is not ours.
	removed := 0
	clusterMarkers, err := r.sess.Registry.ByLayer(ctx, entities.MarkerLayerCluster)
	if err != nil {
		return err
	}
	for _, m := range clusterMarkers {
		if _, wanted := targets[m.ID]; wanted {
			continue
		}
		if err := m.Remove(); err != nil {
			// Remove-protected non-ferry markers stay; the integrity sweep
			// owns the decision to force them out.
			r.log.Debug("marker refused removal", "id", m.ID)
			continue
		}
		removed++
	}
	if _, err := r.sess.Registry.SweepDetached(ctx); err != nil {
		return err
	}

	r.guard.EnforceIntegrity(ctx, r.cfg.Ferry.SweepEpsilonDeg)

	r.log.Debug("reconciled", "targets", len(targets), "created", created, "updated", updated, "removed", removed)
	return nil
}

// buildTargets converts a query result into the desired marker set, folding
// co-located camera leaves into stacked group markers.
func (r *ReconcilerService) buildTargets(nodes []geo.Node) map[string]desiredMarker {
	targets := make(map[string]desiredMarker, len(nodes))

	// First pass: find camera leaves sharing identical rounded coordinates.
	stacks := make(map[string][]*entities.PointFeature)
	for _, n := range nodes {
		if n.IsCluster() || n.Feature.Layer != entities.LayerCamera {
			continue
		}
		key := utils.CoordKey(n.Location.Lat, n.Location.Lng, 6)
		stacks[key] = append(stacks[key], n.Feature)
	}

	stacked := make(map[string]bool)
	for _, group := range stacks {
		if len(group) < 2 {
			continue
		}
		loc := group[0].Location
		id := utils.GroupMarkerID(loc.Lat, loc.Lng)
		targets[id] = desiredMarker{
			loc: loc,
			render: entities.RenderMeta{
				IconKind:  "camera-stack",
				IconSize:  [2]int{40, 40},
				PopupHTML: stackedPopup(group),
			},
		}
		for _, f := range group {
			stacked[f.ID] = true
		}
	}

	for _, n := range nodes {
		if n.IsCluster() {
			id := utils.ClusterMarkerID(n.ClusterID)
			targets[id] = desiredMarker{
				loc:         n.Location,
				render:      clusterRender(n.Count),
				clusterized: true,
			}
			continue
		}
		if stacked[n.Feature.ID] {
			continue
		}
		id := utils.PointMarkerID(string(n.Feature.Layer), n.Feature.ID)
		targets[id] = desiredMarker{loc: n.Location, render: n.Feature.Render}
	}

	return targets
}

// ActivateCluster handles a click on a cluster bubble. Small clusters
// explode into a circle of individual leaf markers; big ones return the zoom
// level at which the cluster naturally splits.
func (r *ReconcilerService) ActivateCluster(ctx context.Context, markerID string) (*ActivationResult, error) {
	raw, ok := strings.CutPrefix(markerID, "cluster:")
	if !ok {
		return nil, fmt.Errorf("not a cluster marker: %s", markerID)
	}
	clusterID64, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad cluster marker id %s: %w", markerID, err)
	}
	clusterID := uint32(clusterID64)

	handle, err := r.sess.Registry.Get(ctx, markerID)
	if err != nil {
		return nil, err
	}

	// A previous spiderfy is restored before a new one opens.
	if r.sess.ExpandedCluster() != "" && r.sess.ExpandedCluster() != markerID {
		if err := r.Reconcile(ctx); err != nil {
			return nil, err
		}
	}

	leaves := r.sess.Index.Leaves(clusterID, 0)
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cluster %d has no leaves", clusterID)
	}

	if len(leaves) > r.cfg.Map.SpiderfyMaxLeaves {
		return &ActivationResult{
			Action: "zoom",
			Zoom:   r.sess.Index.ExpansionZoom(clusterID),
		}, nil
	}

	centroid := handle.Location()
	radius := math.Min(
		r.cfg.Map.SpiderfyBaseRadius+float64(len(leaves))*r.cfg.Map.SpiderfyRadiusStep,
		r.cfg.Map.SpiderfyMaxRadius,
	)
	step := 2 * math.Pi / float64(len(leaves))

	var legIDs []string
	for i, leaf := range leaves {
		angle := step * float64(i)
		loc := entities.NewLocation(
			centroid.Lat+radius*math.Sin(angle),
			centroid.Lng+radius*math.Cos(angle),
		)
		id := utils.SpiderLegID(markerID, i)
		if _, err := r.guard.CreateGuarded(ctx, id, entities.MarkerLayerCluster, loc, leaf.Render, MarkerOptions{}); err != nil {
			r.log.Debug("spider leg skipped", "id", id, "error", err)
			continue
		}
		legIDs = append(legIDs, id)
	}

	// The bubble itself disappears while exploded.
	if err := handle.Remove(); err == nil {
		if _, err := r.sess.Registry.SweepDetached(ctx); err != nil {
			return nil, err
		}
	}
	r.sess.SetExpandedCluster(markerID)

	return &ActivationResult{Action: "spiderfy", MarkerIDs: legIDs}, nil
}

func clusterRender(count int) entities.RenderMeta {
	size := 40
	kind := "cluster-small"
	switch {
	case count >= 100:
		size = 48
		kind = "cluster-large"
	case count >= 10:
		size = 44
		kind = "cluster-medium"
	}
	return entities.RenderMeta{
		IconKind:  kind,
		IconSize:  [2]int{size, size},
		PopupHTML: "",
	}
}

// stackedPopup concatenates each co-located camera's popup under a count
// header, separated by dividers, so one marker exposes every view from the
// shared mast.
func stackedPopup(group []*entities.PointFeature) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="popup-stack" data-count="%d">`, len(group))
	fmt.Fprintf(&b, `<div class="popup-stack-header"><strong>%d kamere na ovoj lokaciji</strong></div>`, len(group))
	for i, f := range group {
		if i > 0 {
			b.WriteString(`<div class="popup-divider"></div>`)
		}
		b.WriteString(f.Render.PopupHTML)
	}
	b.WriteString(`</div>`)
	return b.String()
}
