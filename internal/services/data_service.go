package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/internal/session"
)

// DataService owns the dataset snapshot: the island feed refreshed on a
// fixed cadence, plus the coastal and global extension feeds fetched lazily
// the first time a wider scope needs them. After every snapshot change it
// invokes onUpdate, which the wiring points at the reconciler's refresh.
type DataService struct {
	cfg      *config.Config
	log      *slog.Logger
	sess     *session.Session
	client   *http.Client
	onUpdate func()
}

func NewDataService(cfg *config.Config, log *slog.Logger, sess *session.Session, onUpdate func()) *DataService {
	return &DataService{
		cfg:      cfg,
		log:      log,
		sess:     sess,
		client:   &http.Client{Timeout: cfg.Data.FetchTimeout},
		onUpdate: onUpdate,
	}
}

// Start performs the initial island fetch and schedules the periodic
// refresh. A failed initial fetch is not fatal: the map starts empty and
// fills in on the next successful cycle.
func (s *DataService) Start(ctx context.Context) {
	if err := s.RefreshIsland(ctx); err != nil {
		s.log.Warn("initial dataset fetch failed", "error", err)
	}
	session.Recurring(ctx, s.cfg.Data.RefreshInterval, func() {
		if err := s.RefreshIsland(ctx); err != nil {
			s.log.Warn("dataset refresh failed", "error", err)
		}
	})
}

// RefreshIsland replaces the island dataset (traffic feed plus sea-quality
// feed) while preserving whatever extension datasets are already loaded.
func (s *DataService) RefreshIsland(ctx context.Context) error {
	var island entities.Dataset
	if err := s.fetchJSON(ctx, s.cfg.Data.IslandURL, &island); err != nil {
		return fmt.Errorf("island feed: %w", err)
	}

	var sea []entities.SeaQualityPoint
	if err := s.fetchJSON(ctx, s.cfg.Data.SeaQualityURL, &sea); err != nil {
		// Sea quality is a separate upstream; its failure must not block
		// the traffic refresh.
		s.log.Warn("sea quality feed failed", "error", err)
	} else {
		island.SeaQuality = sea
	}

	snap := s.sess.Snapshot()
	snap.Island = island
	snap.RefreshedAt = time.Now()
	s.sess.SetSnapshot(snap)

	s.log.Info("island dataset refreshed",
		"alerts", len(island.Alerts),
		"weather", len(island.IslandWeather),
		"counters", len(island.Counters),
		"cameras", len(island.Cameras),
		"seaQuality", len(island.SeaQuality))

	if s.onUpdate != nil {
		s.onUpdate()
	}
	return nil
}

// EnsureScope lazily loads the extension datasets a scope needs: regional
// pulls the coastal feed, full pulls coastal and global. Already-loaded
// datasets are never refetched.
func (s *DataService) EnsureScope(ctx context.Context, scope entities.Scope) error {
	if scope == entities.ScopeLocal {
		return nil
	}

	snap := s.sess.Snapshot()
	changed := false

	if !snap.CoastalLoaded {
		var coastal entities.Dataset
		if err := s.fetchJSON(ctx, s.cfg.Data.CoastalURL, &coastal); err != nil {
			return fmt.Errorf("coastal feed: %w", err)
		}
		snap.Coastal = coastal
		snap.CoastalLoaded = true
		changed = true
		s.log.Info("coastal dataset loaded", "weather", len(coastal.Weather), "counters", len(coastal.Counters), "cameras", len(coastal.Cameras))
	}

	if scope == entities.ScopeFull && !snap.GlobalLoaded {
		var global entities.Dataset
		if err := s.fetchJSON(ctx, s.cfg.Data.GlobalURL, &global); err != nil {
			return fmt.Errorf("global feed: %w", err)
		}
		snap.Global = global
		snap.GlobalLoaded = true
		changed = true
		s.log.Info("global dataset loaded", "weather", len(global.Weather), "counters", len(global.Counters), "cameras", len(global.Cameras))
	}

	if changed {
		s.sess.SetSnapshot(snap)
		if s.onUpdate != nil {
			s.onUpdate()
		}
	}
	return nil
}

func (s *DataService) fetchJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
