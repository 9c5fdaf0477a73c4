package entities

import (
	"testing"
	"time"
)

func testSchedule() Schedule {
	return Schedule{
		Departures: []string{
			"05:30", "07:00", "08:30", "10:00", "11:30", "13:00",
			"14:30", "16:00", "17:30", "19:00", "20:30", "22:00",
		},
		TripDuration: 15 * time.Minute,
	}
}

func TestDeparturesAt(t *testing.T) {
	schedule := testSchedule()

	tests := []struct {
		name  string
		hour  int
		min   int
		board DepartureBoard
	}{
		{name: "Before first departure", hour: 4, min: 0,
			board: DepartureBoard{Last: "--:--", Next: "05:30", After: "07:00"}},
		{name: "Exactly on a departure", hour: 8, min: 30,
			board: DepartureBoard{Last: "08:30", Next: "10:00", After: "11:30"}},
		{name: "Mid-day", hour: 12, min: 15,
			board: DepartureBoard{Last: "11:30", Next: "13:00", After: "14:30"}},
		{name: "After the last departure wraps to tomorrow", hour: 23, min: 0,
			board: DepartureBoard{Last: "22:00", Next: "05:30", After: "07:00"}},
		{name: "Second to last wraps only the after slot", hour: 21, min: 0,
			board: DepartureBoard{Last: "20:30", Next: "22:00", After: "05:30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, 8, 30, tt.hour, tt.min, 0, 0, time.UTC)
			got := schedule.DeparturesAt(now)
			if got != tt.board {
				t.Errorf("At %02d:%02d expected %+v, got %+v", tt.hour, tt.min, tt.board, got)
			}
		})
	}
}

func TestAISFixFresh(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	fresh := AISFix{ReceivedAt: now.Add(-30 * time.Second)}
	if !fresh.Fresh(now, 90*time.Second) {
		t.Error("30s old fix should be fresh at a 90s horizon")
	}

	stale := AISFix{ReceivedAt: now.Add(-2 * time.Minute)}
	if stale.Fresh(now, 90*time.Second) {
		t.Error("2m old fix should be stale at a 90s horizon")
	}

	var zero AISFix
	if zero.Fresh(now, 90*time.Second) {
		t.Error("Zero-value fix must never read as fresh")
	}
}
