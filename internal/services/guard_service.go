package services

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/internal/repository"
	"rabmap/pkg/utils"
)

var (
	ErrNearFerry          = errors.New("marker coordinates collide with the ferry")
	ErrInvalidCoordinates = errors.New("invalid marker coordinates")
)

// MarkerOptions are the creation flags a caller declares up front. Ferry
// ownership must be explicit; nothing infers it from coordinates.
type MarkerOptions struct {
	IsFerry       bool
	IsClusterized bool
	DoNotRemove   bool
}

// GuardService is the single gateway for putting markers on the map. Every
// component that creates a marker calls CreateGuarded — never the registry
// directly — which makes the ferry exclusion zone an architectural contract
// instead of a runtime patch. It also owns the periodic integrity sweep that
// catches anything that slipped through.
type GuardService struct {
	cfg      *config.Config
	log      *slog.Logger
	registry repository.MarkerRegistry
}

func NewGuardService(cfg *config.Config, log *slog.Logger, registry repository.MarkerRegistry) *GuardService {
	return &GuardService{cfg: cfg, log: log, registry: registry}
}

// CreateGuarded creates and registers a marker handle. Creation is refused
// when the coordinates fall within the exclusion epsilon of the ferry's
// current position and the options do not declare ferry ownership. An id
// that is already registered gets its handle updated in place instead of
// producing a duplicate.
func (g *GuardService) CreateGuarded(
	ctx context.Context,
	id string,
	layer entities.MarkerLayer,
	loc entities.Location,
	render entities.RenderMeta,
	opts MarkerOptions,
) (*entities.MarkerHandle, error) {
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lng) ||
		loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return nil, ErrInvalidCoordinates
	}

	if !opts.IsFerry {
		if ferry := g.ferryHandle(ctx); ferry != nil {
			ferryLoc := ferry.Location()
			d := utils.ChebyshevDeg(loc.Lat, loc.Lng, ferryLoc.Lat, ferryLoc.Lng)
			if d <= g.cfg.Ferry.CreateEpsilonDeg {
				if g.cfg.Map.LogProximityWarnings {
					g.log.Warn("blocked marker creation near ferry", "id", id, "distanceDeg", d)
				}
				return nil, ErrNearFerry
			}
		}
	}

	handle := entities.NewMarkerHandle(id, layer, loc, render)
	handle.IsFerry = opts.IsFerry
	handle.IsClusterized = opts.IsClusterized
	handle.DoNotRemove = opts.DoNotRemove

	if err := g.registry.Put(ctx, handle); err != nil {
		// The id was registered between the caller's lookup and this create.
		// The contract is update-in-place, never a duplicate: reposition the
		// existing handle and hand it back.
		if existing, getErr := g.registry.Get(ctx, id); getErr == nil {
			existing.SetLocation(loc)
			existing.SetRender(render)
			return existing, nil
		}
		return nil, err
	}
	return handle, nil
}

// SafeRemove detaches a handle through its public remove entry point, and
// falls back to the privileged escape hatch when the handle refuses. Only
// the guard and the ferry deduplication use the fallback.
func (g *GuardService) SafeRemove(marker *entities.MarkerHandle) {
	if err := marker.Remove(); err != nil {
		g.log.Debug("protected marker, forcing removal", "id", marker.ID)
		marker.ForceRemove()
	}
}

// EnforceIntegrity sweeps the whole registry for two violation classes:
// ferry-flagged handles outside the ferry layer (or beyond the one canonical
// instance) and non-ferry handles within eps of the live ferry position.
// Returns how many handles were removed. Runs after every reconciliation
// pass, so violations are caught immediately rather than only on a timer.
func (g *GuardService) EnforceIntegrity(ctx context.Context, eps float64) int {
	ferry := g.ferryHandle(ctx)

	all, err := g.registry.All(ctx)
	if err != nil {
		g.log.Error("integrity sweep failed to list markers", "error", err)
		return 0
	}

	removed := 0
	for _, m := range all {
		if ferry != nil && m == ferry {
			continue
		}
		if m.IsFerry {
			// Ferry-flagged but not the canonical instance, or living in
			// the wrong layer: a leftover from a previous render.
			g.log.Debug("integrity sweep removing stray ferry-flagged marker", "id", m.ID)
			g.SafeRemove(m)
			removed++
			continue
		}
		if ferry == nil {
			continue
		}
		loc := m.Location()
		ferryLoc := ferry.Location()
		d := utils.ChebyshevDeg(loc.Lat, loc.Lng, ferryLoc.Lat, ferryLoc.Lng)
		if d <= eps {
			if g.cfg.Map.LogProximityWarnings {
				g.log.Warn("integrity sweep removing marker near ferry", "id", m.ID, "distanceDeg", d)
			}
			g.SafeRemove(m)
			removed++
		}
	}

	if removed > 0 {
		if _, err := g.registry.SweepDetached(ctx); err != nil {
			g.log.Error("registry sweep failed", "error", err)
		}
	}
	return removed
}

// ferryHandle resolves the canonical ferry marker: the first ferry-flagged,
// remove-protected handle in the ferry layer.
func (g *GuardService) ferryHandle(ctx context.Context) *entities.MarkerHandle {
	handles, err := g.registry.ByLayer(ctx, entities.MarkerLayerFerry)
	if err != nil {
		return nil
	}
	for _, h := range handles {
		if h.IsFerry && h.DoNotRemove && h.Attached() {
			return h
		}
	}
	return nil
}
