package session

import (
	"context"
	"sync"
	"time"
)

// Recurring runs fn on a fixed interval until the context is canceled.
//
// Go Learning Note — time.Ticker vs time.Sleep loops:
// A Ticker keeps a steady cadence regardless of how long fn takes (ticks that
// arrive while fn runs are dropped, not queued). A sleep loop would drift by
// fn's duration on every iteration.
func Recurring(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Debouncer collapses bursts of triggers into one call after a quiet period.
// Map moves and filter toggles arrive in quick succession; the rebuild only
// needs to happen once the burst settles.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, replacing any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
