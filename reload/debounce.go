// Package reload implements the Reload controller of spec.md §4.7 (C7):
// it subscribes to change events, debounces and serializes reloads, links
// rule references, and publishes a new ProgramSnapshot.
package reload

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// debouncer collapses bursts of reload requests into at most one in-flight
// reload plus at most one pending reload (spec.md §4.7), gated to run no
// more often than once per interval.
type debouncer struct {
	mu         sync.Mutex
	inProgress bool
	pending    bool
	limiter    *rate.Limiter
	trigger    func(context.Context)
}

func newDebouncer(interval time.Duration, trigger func(context.Context)) *debouncer {
	return &debouncer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		trigger: trigger,
	}
}

// Request schedules a reload. If a reload is already running, this request
// is folded into the single pending slot; it does not start a second
// concurrent reload.
func (d *debouncer) Request(ctx context.Context) {
	d.mu.Lock()
	if d.inProgress {
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.inProgress = true
	d.mu.Unlock()
	go d.run(ctx)
}

func (d *debouncer) run(ctx context.Context) {
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			d.mu.Lock()
			d.inProgress = false
			d.pending = false
			d.mu.Unlock()
			return
		}

		d.trigger(ctx)

		d.mu.Lock()
		if d.pending {
			d.pending = false
			d.mu.Unlock()
			continue
		}
		d.inProgress = false
		d.mu.Unlock()
		return
	}
}
