package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/internal/session"
	"rabmap/pkg/utils"
)

// FixSource supplies the most recent live AIS position, when one exists.
type FixSource interface {
	Latest() (entities.AISFix, bool)
}

// FerryService runs the one-second simulation tick for the Mišnjak–Stinica
// crossing. Each tick maps the wall clock onto the timetable, interpolates
// the position along the crossing (or takes a fresh AIS fix instead),
// resolves the single canonical ferry marker, and removes any duplicates
// that appeared since the last tick.
type FerryService struct {
	cfg   *config.Config
	log   *slog.Logger
	sess  *session.Session
	guard *GuardService
	ais   FixSource

	mu     sync.RWMutex
	marker *entities.MarkerHandle
	status entities.FerryStatus
}

func NewFerryService(
	cfg *config.Config,
	log *slog.Logger,
	sess *session.Session,
	guard *GuardService,
	ais FixSource,
) *FerryService {
	svc := &FerryService{cfg: cfg, log: log, sess: sess, guard: guard, ais: ais}
	if cfg.Ferry.Suspended {
		sess.SetSuspended(true)
	}
	return svc
}

// Start places the ferry marker and begins ticking until ctx is canceled.
func (s *FerryService) Start(ctx context.Context) error {
	if _, err := s.ensureMarker(ctx); err != nil {
		return err
	}
	s.Tick(ctx, time.Now())
	session.Recurring(ctx, s.cfg.Ferry.TickInterval, func() {
		s.Tick(ctx, time.Now())
	})
	return nil
}

// Tick advances the simulation one step. Position updates are skipped while
// the user is mid pan/zoom so the marker does not visually jump; the next
// tick after the gesture ends applies the current position.
func (s *FerryService) Tick(ctx context.Context, now time.Time) {
	marker, err := s.ensureMarker(ctx)
	if err != nil {
		s.log.Error("ferry marker resolution failed", "error", err)
		return
	}
	s.dedupe(ctx, marker)

	boards := s.departureBoards(now)

	if s.sess.Suspended() {
		// Position frozen; only the status surfaces change.
		status := entities.FerryStatus{
			State:      entities.FerrySuspended,
			Location:   marker.Location(),
			StatusText: "LINIJA U PREKIDU (Bura)",
			Misnjak:    boards.misnjak,
			Stinica:    boards.stinica,
			UpdatedAt:  now,
		}
		marker.SetRender(ferryRender(status))
		s.setStatus(status)
		return
	}

	state, progress, statusText := s.scheduleState(now)
	loc := entities.NewLocation(
		utils.Lerp(s.cfg.Ferry.MisnjakPort.Lat, s.cfg.Ferry.StinicaPort.Lat, progress),
		utils.Lerp(s.cfg.Ferry.MisnjakPort.Lng, s.cfg.Ferry.StinicaPort.Lng, progress),
	)

	var liveFix *entities.AISFix
	if s.ais != nil {
		if fix, ok := s.ais.Latest(); ok && fix.Fresh(now, s.cfg.AIS.MaxFixAge) {
			loc = fix.Location
			statusText += " · AIS uživo"
			liveFix = &fix
		}
	}

	status := entities.FerryStatus{
		State:      state,
		Location:   loc,
		Progress:   progress,
		StatusText: statusText,
		Misnjak:    boards.misnjak,
		Stinica:    boards.stinica,
		LiveFix:    liveFix,
		UpdatedAt:  now,
	}

	if !s.sess.Interacting() {
		marker.SetLocation(loc)
		marker.SetRender(ferryRender(status))
	}
	s.setStatus(status)
}

// scheduleState maps minute-of-hour onto the crossing state machine:
// [0, d) outbound, [d, 30) docked at Stinica, [30, 30+d) inbound,
// [30+d, 60) docked at Mišnjak, where d is the trip duration in minutes.
// Progress runs 0 at Mišnjak to 1 at Stinica.
func (s *FerryService) scheduleState(now time.Time) (entities.FerryState, float64, string) {
	minutes := float64(now.Minute()) + float64(now.Second())/60
	duration := s.cfg.Ferry.TripDuration.Minutes()

	switch {
	case minutes < duration:
		progress := minutes / duration
		return entities.FerryOutboundAB, progress,
			fmt.Sprintf("Isplovio iz Mišnjaka (%d%%)", int(math.Round(progress*100)))
	case minutes >= 30 && minutes < 30+duration:
		progress := 1 - (minutes-30)/duration
		return entities.FerryInboundBA, progress,
			fmt.Sprintf("Plovidba prema Rabu (%d%%)", int(math.Round((1-progress)*100)))
	case minutes >= duration && minutes < 30:
		return entities.FerryDockedAtB, 1, "Luka Stinica (Ukrcaj/Iskrcaj)"
	default:
		return entities.FerryDockedAtA, 0, "Luka Mišnjak (Ukrcaj/Iskrcaj)"
	}
}

type boards struct {
	misnjak entities.DepartureBoard
	stinica entities.DepartureBoard
}

// departureBoards computes the last/next/after triples for both ports from
// the one shared timetable — both boards come out identical, matching the
// published schedule presentation.
func (s *FerryService) departureBoards(now time.Time) boards {
	schedule := s.cfg.Ferry.Schedule()
	return boards{
		misnjak: schedule.DeparturesAt(now),
		stinica: schedule.DeparturesAt(now),
	}
}

// Status returns the latest tick's output.
func (s *FerryService) Status() entities.FerryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetSuspended flips the administrative override and applies it on the spot
// rather than waiting out the current tick interval.
func (s *FerryService) SetSuspended(ctx context.Context, suspended bool) {
	s.sess.SetSuspended(suspended)
	s.log.Info("ferry suspension changed", "suspended", suspended)
	s.Tick(ctx, time.Now())
}

func (s *FerryService) setStatus(status entities.FerryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// ensureMarker resolves the canonical ferry marker: the stored reference if
// it is still attached, otherwise a scan of the ferry layer, otherwise a
// fresh guarded creation.
func (s *FerryService) ensureMarker(ctx context.Context) (*entities.MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.marker != nil && s.marker.Attached() {
		return s.marker, nil
	}

	handles, err := s.sess.Registry.ByLayer(ctx, entities.MarkerLayerFerry)
	if err == nil {
		for _, h := range handles {
			if h.IsFerry && h.Attached() {
				s.marker = h
				return h, nil
			}
		}
	}

	marker, err := s.guard.CreateGuarded(ctx, "ferry", entities.MarkerLayerFerry,
		s.cfg.Ferry.MisnjakPort, entities.RenderMeta{IconKind: "ferry", IconSize: [2]int{44, 44}},
		MarkerOptions{IsFerry: true, DoNotRemove: true})
	if err != nil {
		return nil, err
	}
	s.marker = marker
	return marker, nil
}

// dedupe force-removes any ferry-flagged duplicate and any marker sitting on
// the canonical instance's coordinates. This is the only removal path that
// may override a handle's protection flag besides the integrity sweep.
func (s *FerryService) dedupe(ctx context.Context, canonical *entities.MarkerHandle) {
	all, err := s.sess.Registry.All(ctx)
	if err != nil {
		return
	}
	canonicalLoc := canonical.Location()
	removed := 0
	for _, m := range all {
		if m == canonical {
			continue
		}
		loc := m.Location()
		coincident := utils.ChebyshevDeg(
			loc.Lat, loc.Lng,
			canonicalLoc.Lat, canonicalLoc.Lng,
		) <= s.cfg.Ferry.CreateEpsilonDeg
		if m.IsFerry || coincident {
			s.guard.SafeRemove(m)
			removed++
		}
	}
	if removed > 0 {
		s.log.Warn("ferry duplicates removed", "count", removed)
		if _, err := s.sess.Registry.SweepDetached(ctx); err != nil {
			s.log.Error("registry sweep failed", "error", err)
		}
	}
}

func ferryRender(status entities.FerryStatus) entities.RenderMeta {
	return entities.RenderMeta{
		IconKind:  "ferry",
		IconSize:  [2]int{44, 44},
		PopupHTML: ferryPopup(status),
	}
}

func ferryPopup(status entities.FerryStatus) string {
	live := ""
	if status.LiveFix != nil {
		live = fmt.Sprintf(
			`<div class="popup-row"><span class="popup-label">Brzina</span><span class="popup-value">%.1f čv</span></div>`+
				`<div class="popup-row"><span class="popup-label">Kurs</span><span class="popup-value">%.0f°</span></div>`,
			status.LiveFix.SpeedKn, status.LiveFix.Course)
	}
	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">Trajekt Rapska Plovidba</h3><span class="popup-subtitle">Mišnjak ⇄ Stinica</span></div>`+
		`<div class="popup-body">`+
		`<div class="popup-row"><span class="popup-label">Status</span><span class="popup-value">%s</span></div>`+
		`<div class="popup-row"><span class="popup-label">Zadnji</span><span class="popup-value">%s</span></div>`+
		`<div class="popup-row"><span class="popup-label">Sljedeći</span><span class="popup-value">%s</span></div>`+
		`<div class="popup-row"><span class="popup-label">Nakon toga</span><span class="popup-value">%s</span></div>`+
		`%s</div>`+
		`<div class="popup-footer"><span class="popup-source">Rapska Plovidba</span><span class="popup-live">Uživo</span></div>`,
		status.StatusText, status.Misnjak.Last, status.Misnjak.Next, status.Misnjak.After, live)
}
