package services

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"rabmap/internal/config"
	"rabmap/internal/domain/entities"
	"rabmap/pkg/utils"
)

// FeatureService reduces the raw dataset snapshot to the uniform point
// features the cluster index consumes. The reduction applies the user's
// layer filters and geographic scope, merges co-located traffic counters,
// renders popup HTML, and drops anything sitting on top of the ferry.
type FeatureService struct {
	cfg *config.Config
	log *slog.Logger
}

func NewFeatureService(cfg *config.Config, log *slog.Logger) *FeatureService {
	return &FeatureService{cfg: cfg, log: log}
}

// fingerprintPayload captures everything the feature set depends on. Dataset
// contents are represented by their lengths: the feeds replace wholesale on
// refresh, so a changed feed almost always changes a length, and a rebuild
// on equal lengths would produce the same markers anyway.
type fingerprintPayload struct {
	Roadwork      bool           `json:"roadwork"`
	Weather       bool           `json:"weather"`
	Counters      bool           `json:"counters"`
	Cameras       bool           `json:"cameras"`
	SeaQuality    bool           `json:"seaQuality"`
	Scope         entities.Scope `json:"scope"`
	CoastalLoaded bool           `json:"coastalLoaded"`
	GlobalLoaded  bool           `json:"globalLoaded"`
	AlertsLen     int            `json:"alertsLen"`
	WeatherLen    int            `json:"weatherLen"`
	CountersLen   int            `json:"countersLen"`
	CamerasLen    int            `json:"camerasLen"`
	SeaQualityLen int            `json:"seaQualityLen"`
}

// Fingerprint digests the snapshot and selection so callers can skip
// rebuilds when nothing relevant changed.
func (s *FeatureService) Fingerprint(snap entities.Snapshot, filters entities.LayerFilters, scope entities.Scope) string {
	payload := fingerprintPayload{
		Roadwork:      filters.Roadwork,
		Weather:       filters.Weather,
		Counters:      filters.Counters,
		Cameras:       filters.Cameras,
		SeaQuality:    filters.SeaQuality,
		Scope:         scope,
		CoastalLoaded: snap.CoastalLoaded,
		GlobalLoaded:  snap.GlobalLoaded,
		AlertsLen:     len(snap.Island.Alerts),
		WeatherLen:    len(snap.Island.IslandWeather),
		CountersLen:   len(snap.Island.Counters),
		CamerasLen:    len(snap.Island.Cameras),
		SeaQualityLen: len(snap.Island.SeaQuality),
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// BuildFeatures produces the point features for the current snapshot and
// selection. ferryAt, when non-nil, is the ferry's current position; any
// feature within the creation epsilon of it is dropped so the index never
// spawns markers on top of the ferry.
func (s *FeatureService) BuildFeatures(
	snap entities.Snapshot,
	filters entities.LayerFilters,
	scope entities.Scope,
	ferryAt *entities.Location,
) []entities.PointFeature {
	var features []entities.PointFeature

	if filters.Roadwork {
		features = append(features, s.buildAlerts(snap, scope)...)
	}
	if filters.Weather {
		features = append(features, s.buildWeather(snap, scope)...)
	}
	if filters.Counters {
		features = append(features, s.buildCounters(snap, scope)...)
	}
	if filters.Cameras {
		features = append(features, s.buildCameras(snap, scope)...)
	}
	if filters.SeaQuality {
		features = append(features, s.buildSeaQuality(snap, scope)...)
	}

	if ferryAt != nil {
		kept := features[:0]
		for _, f := range features {
			d := utils.ChebyshevDeg(f.Location.Lat, f.Location.Lng, ferryAt.Lat, ferryAt.Lng)
			if d <= s.cfg.Ferry.CreateEpsilonDeg {
				if s.cfg.Map.LogProximityWarnings {
					s.log.Warn("feature dropped, coincides with ferry", "feature", f.ID, "distanceDeg", d)
				}
				continue
			}
			kept = append(kept, f)
		}
		features = kept
	}

	s.log.Debug("features built", "count", len(features), "scope", scope)
	return features
}

// withinScope applies the radius filter from the island reference point.
// distanceFromRab is the feed's precomputed distance; zero means the feed
// did not provide one and we compute it ourselves.
func (s *FeatureService) withinScope(lat, lng, distanceFromRab float64, scope entities.Scope) bool {
	if scope == entities.ScopeFull {
		return true
	}
	dist := distanceFromRab
	if dist == 0 {
		ref := s.cfg.Data.ReferencePoint
		dist = utils.HaversineDistance(ref.Lat, ref.Lng, lat, lng)
	}
	if scope == entities.ScopeLocal {
		return dist <= s.cfg.Data.LocalRadiusKm
	}
	return dist <= s.cfg.Data.RegionalRadiusKm
}

func (s *FeatureService) buildAlerts(snap entities.Snapshot, scope entities.Scope) []entities.PointFeature {
	seen := make(map[string]bool)
	var out []entities.PointFeature
	for _, a := range snap.Island.Alerts {
		if a.Lat == nil || a.Lng == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if !s.withinScope(*a.Lat, *a.Lng, 0, scope) {
			continue
		}

		kind := classifyAlert(a)
		id := a.ID
		if id == "" {
			id = entities.FallbackFeatureID(entities.LayerAlert, *a.Lng, *a.Lat)
		}
		out = append(out, entities.PointFeature{
			ID:       id,
			Layer:    entities.LayerAlert,
			Location: entities.NewLocation(*a.Lat, *a.Lng),
			Render: entities.RenderMeta{
				IconKind:  "marker-" + kind,
				IconSize:  [2]int{36, 36},
				PopupHTML: alertPopup(a),
			},
			SourceRef: a.Road,
		})
	}
	return out
}

func (s *FeatureService) buildWeather(snap entities.Snapshot, scope entities.Scope) []entities.PointFeature {
	raw := append([]entities.WeatherStation{}, snap.Island.IslandWeather...)
	if snap.CoastalLoaded {
		raw = append(raw, snap.Coastal.Weather...)
	}
	if snap.GlobalLoaded {
		raw = append(raw, snap.Global.Weather...)
	}

	seen := make(map[string]bool)
	var out []entities.PointFeature
	for _, w := range raw {
		if w.Lat == nil || w.Lng == nil || seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		if !s.withinScope(*w.Lat, *w.Lng, w.DistanceFromRab, scope) {
			continue
		}
		out = append(out, entities.PointFeature{
			ID:       w.ID,
			Layer:    entities.LayerWeather,
			Location: entities.NewLocation(*w.Lat, *w.Lng),
			Render: entities.RenderMeta{
				IconKind:  "weather",
				IconSize:  [2]int{36, 36},
				PopupHTML: weatherPopup(w),
			},
		})
	}
	return out
}

// buildCounters merges counter lanes measuring the same physical site. Sites
// are keyed by coordinates rounded to five decimals (about one meter), and a
// merged site renders one marker whose popup lists every direction.
func (s *FeatureService) buildCounters(snap entities.Snapshot, scope entities.Scope) []entities.PointFeature {
	raw := append([]entities.Counter{}, snap.Island.Counters...)
	if snap.CoastalLoaded {
		raw = append(raw, snap.Coastal.Counters...)
	}
	if snap.GlobalLoaded {
		raw = append(raw, snap.Global.Counters...)
	}

	seen := make(map[string]bool)
	grouped := make(map[string][]entities.Counter)
	var order []string
	for _, c := range raw {
		if c.Lat == nil || c.Lng == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if !s.withinScope(*c.Lat, *c.Lng, c.DistanceFromRab, scope) {
			continue
		}
		key := utils.CoordKey(*c.Lat, *c.Lng, 5)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], c)
	}

	var out []entities.PointFeature
	for _, key := range order {
		group := grouped[key]
		first := group[0]
		id := first.ID
		if id == "" {
			id = first.Name
		}
		out = append(out, entities.PointFeature{
			ID:       id,
			Layer:    entities.LayerCounter,
			Location: entities.NewLocation(*first.Lat, *first.Lng),
			Render: entities.RenderMeta{
				IconKind:  "counter",
				IconSize:  [2]int{36, 36},
				PopupHTML: counterPopup(group),
			},
		})
	}
	return out
}

func (s *FeatureService) buildCameras(snap entities.Snapshot, scope entities.Scope) []entities.PointFeature {
	raw := append([]entities.Camera{}, snap.Island.Cameras...)
	if snap.CoastalLoaded {
		raw = append(raw, snap.Coastal.Cameras...)
	}
	if snap.GlobalLoaded {
		raw = append(raw, snap.Global.Cameras...)
	}

	seen := make(map[string]bool)
	var out []entities.PointFeature
	for _, cam := range raw {
		if cam.Lat == nil || cam.Lng == nil || seen[cam.ID] {
			continue
		}
		seen[cam.ID] = true
		if !s.withinScope(*cam.Lat, *cam.Lng, cam.DistanceFromRab, scope) {
			continue
		}
		out = append(out, entities.PointFeature{
			ID:       cam.ID,
			Layer:    entities.LayerCamera,
			Location: entities.NewLocation(*cam.Lat, *cam.Lng),
			Render: entities.RenderMeta{
				IconKind:  "camera",
				IconSize:  [2]int{36, 36},
				PopupHTML: cameraPopup(cam),
			},
			SourceRef: cam.URL,
		})
	}
	return out
}

func (s *FeatureService) buildSeaQuality(snap entities.Snapshot, scope entities.Scope) []entities.PointFeature {
	var out []entities.PointFeature
	for _, p := range snap.Island.SeaQuality {
		if p.Lat == nil || p.Lng == nil {
			continue
		}
		if !s.withinScope(*p.Lat, *p.Lng, 0, scope) {
			continue
		}
		id := p.ID
		if id == "" {
			id = entities.FallbackFeatureID(entities.LayerSeaQuality, *p.Lng, *p.Lat)
		}
		out = append(out, entities.PointFeature{
			ID:       id,
			Layer:    entities.LayerSeaQuality,
			Location: entities.NewLocation(*p.Lat, *p.Lng),
			Render: entities.RenderMeta{
				IconKind:  "sea-" + seaQualityClass(p.Quality),
				IconSize:  [2]int{36, 36},
				PopupHTML: seaQualityPopup(p),
			},
		})
	}
	return out
}

// classifyAlert picks the marker style from the notice text.
func classifyAlert(a entities.Alert) string {
	text := strings.ToLower(a.Type + " " + a.Details)
	switch {
	case strings.Contains(text, "nesre") || strings.Contains(text, "accident"):
		return "accident"
	case strings.Contains(text, "zatvor") || strings.Contains(text, "closure") || strings.Contains(text, "closed"):
		return "closure"
	default:
		return "roadwork"
	}
}

func seaQualityClass(quality int) string {
	switch quality {
	case 1:
		return "excellent"
	case 2:
		return "good"
	case 3:
		return "moderate"
	default:
		return "poor"
	}
}

func seaQualityText(quality int) string {
	switch quality {
	case 1:
		return "Izvrsna"
	case 2:
		return "Dobra"
	case 3:
		return "Zadovoljavajuća"
	default:
		return "Nezadovoljavajuća"
	}
}

func alertPopup(a entities.Alert) string {
	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">%s</h3><span class="popup-subtitle">Prometno upozorenje</span></div>`+
		`<div class="popup-body"><p class="popup-description">%s</p></div>`+
		`<div class="popup-footer"><span class="popup-source">Izvor: NPT</span><span class="popup-live">Aktivno</span></div>`,
		html.EscapeString(a.Road), html.EscapeString(a.Details))
}

func weatherPopup(w entities.WeatherStation) string {
	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">%s</h3><span class="popup-subtitle">Vremenska postaja</span></div>`+
		`<div class="popup-body">`+
		`<div class="popup-row"><span class="popup-label">Temperatura</span><span class="popup-value">%.1f°C</span></div>`+
		`<div class="popup-row"><span class="popup-label">Vjetar</span><span class="popup-value">%.0f km/h</span></div>`+
		`<div class="popup-row"><span class="popup-label">Udari vjetra</span><span class="popup-value">%.0f km/h</span></div>`+
		`</div>`+
		`<div class="popup-footer"><span class="popup-source">Izvor: DHMZ</span><span class="popup-live">Aktivno</span></div>`,
		html.EscapeString(w.Name), w.TempC, w.WindSpeedKmh, w.WindGustKmh)
}

func counterPopup(group []entities.Counter) string {
	title := html.EscapeString(group[0].Name)
	if len(group) > 1 {
		title = "Višesmjerno brojanje"
	}

	var rows strings.Builder
	for i, c := range group {
		if len(group) > 1 {
			if i > 0 {
				rows.WriteString(`<div class="popup-divider"></div>`)
			}
			fmt.Fprintf(&rows, `<div class="popup-direction">%s</div>`, html.EscapeString(c.Name))
		}
		fmt.Fprintf(&rows,
			`<div class="popup-row"><span class="popup-label">Protok</span><span class="popup-value">%d voz/h</span></div>`+
				`<div class="popup-row"><span class="popup-label">Brzina</span><span class="popup-value">%d km/h</span></div>`,
			c.FlowPerHour, c.SpeedKmh)
	}

	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">%s</h3><span class="popup-subtitle">Brojač prometa</span></div>`+
		`<div class="popup-body">%s</div>`+
		`<div class="popup-footer"><span class="popup-source">Izvor: HAK</span><span class="popup-live">Aktivno</span></div>`,
		title, rows.String())
}

func cameraPopup(cam entities.Camera) string {
	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">%s</h3><span class="popup-subtitle">Prometna kamera</span></div>`+
		`<div class="popup-camera-preview"><img src="%s" alt="%s"></div>`+
		`<div class="popup-footer"><span class="popup-source">NPT Live</span><span class="popup-live">Streaming</span></div>`,
		html.EscapeString(cam.Title), html.EscapeString(cam.URL), html.EscapeString(cam.Title))
}

func seaQualityPopup(p entities.SeaQualityPoint) string {
	history := `<div class="popup-history-note">Nema dostupne povijesti mjerenja.</div>`
	if len(p.History) > 0 {
		history = fmt.Sprintf(`<button class="popup-history-btn" data-sea-id="%s">Povijest mjerenja</button>`, html.EscapeString(p.ID))
	}
	return fmt.Sprintf(`<div class="popup-header"><h3 class="popup-title">%s</h3><span class="popup-subtitle">%s</span></div>`+
		`<div class="popup-body"><div class="popup-quality-badge popup-quality-badge--%s">`+
		`<div class="popup-quality-label">Kakvoća mora</div><div class="popup-quality-value">%s</div></div>%s</div>`+
		`<div class="popup-footer"><span class="popup-source">IZOR %s</span><span class="popup-live">Službeni podaci</span></div>`,
		html.EscapeString(p.Name), html.EscapeString(p.City),
		seaQualityClass(p.Quality), strings.ToUpper(seaQualityText(p.Quality)), history, html.EscapeString(p.Year))
}
