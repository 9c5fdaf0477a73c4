package entities

import (
	"fmt"
	"time"
)

// FerryState is the simulator's state machine position. The schedule maps
// minute-of-hour onto these states; the administrative override forces
// Suspended regardless of the clock.
type FerryState string

const (
	FerryDockedAtA  FerryState = "docked_misnjak"
	FerryOutboundAB FerryState = "outbound"
	FerryDockedAtB  FerryState = "docked_stinica"
	FerryInboundBA  FerryState = "inbound"
	FerrySuspended  FerryState = "suspended"
)

// Schedule holds the fixed departure list shared by both ports and the
// constant trip duration. Departures are "HH:MM" strings sorted ascending.
type Schedule struct {
	Departures   []string
	TripDuration time.Duration
}

// DurationMins returns the trip duration in whole minutes, the unit the
// minute-of-hour state machine works in.
func (s Schedule) DurationMins() float64 {
	return s.TripDuration.Minutes()
}

// DepartureBoard is the last/next/after departure triple shown in the ferry
// popup and the sidebar widget.
type DepartureBoard struct {
	Last  string `json:"last"`
	Next  string `json:"next"`
	After string `json:"after"`
}

// DeparturesAt computes the board for a wall-clock instant. Indexes past the
// end of the schedule wrap around to the start of the next day's list, and
// "--:--" marks the window before the first departure.
func (s Schedule) DeparturesAt(now time.Time) DepartureBoard {
	nowMins := now.Hour()*60 + now.Minute()

	lastIdx := -1
	for i := len(s.Departures) - 1; i >= 0; i-- {
		if departureMinute(s.Departures[i]) <= nowMins {
			lastIdx = i
			break
		}
	}

	format := func(idx int) string {
		if idx < 0 {
			return "--:--"
		}
		return s.Departures[idx%len(s.Departures)]
	}

	return DepartureBoard{
		Last:  format(lastIdx),
		Next:  format(lastIdx + 1),
		After: format(lastIdx + 2),
	}
}

func departureMinute(hhmm string) int {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}

// AISFix is one live position report pushed by the upstream AIS feed.
// Absent or stale fixes make the simulator fall back to schedule
// interpolation.
type AISFix struct {
	MMSI       string    `json:"mmsi"`
	Name       string    `json:"name"`
	Location   Location  `json:"location"`
	SpeedKn    float64   `json:"speed"`
	Course     float64   `json:"course"`
	Heading    float64   `json:"heading"`
	NavStatus  string    `json:"status"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Fresh reports whether the fix is recent enough to override the schedule
// interpolation for the current tick.
func (f AISFix) Fresh(now time.Time, maxAge time.Duration) bool {
	return !f.ReceivedAt.IsZero() && now.Sub(f.ReceivedAt) <= maxAge
}

// FerryStatus is the externally visible simulator output: where the ferry
// is, what it is doing, and the departure boards for both ports.
type FerryStatus struct {
	State      FerryState     `json:"state"`
	Location   Location       `json:"location"`
	Progress   float64        `json:"progress"`
	StatusText string         `json:"statusText"`
	Misnjak    DepartureBoard `json:"misnjak"`
	Stinica    DepartureBoard `json:"stinica"`
	LiveFix    *AISFix        `json:"liveFix,omitempty"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
