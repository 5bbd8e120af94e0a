// Package ticker provides the fixed-period tick source that drives the core.
package ticker

import (
	"context"
	"sync/atomic"
	"time"
)

// Periodic invokes a handler at a fixed period.
type Periodic struct {
	period time.Duration
	now    func() time.Time

	ticks    atomic.Uint64
	catchUps atomic.Uint64
}

// New creates a tick source with the given period.
func New(period time.Duration) *Periodic {
	return &Periodic{period: period, now: time.Now}
}

// Period returns the tick period.
func (p *Periodic) Period() time.Duration {
	return p.period
}

// Run invokes handler once per period until ctx is done. Invocations are
// serialised on the calling goroutine and never overlap. When the goroutine
// wakes late the handler runs once for every elapsed period, so the tick
// count never skips.
func (p *Periodic) Run(ctx context.Context, handler func()) error {
	t := time.NewTicker(p.period)
	defer t.Stop()
	return p.run(ctx, t.C, p.now(), handler)
}

func (p *Periodic) run(ctx context.Context, c <-chan time.Time, start time.Time, handler func()) error {
	var done uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-c:
			due := uint64(now.Sub(start) / p.period)
			if due > done+1 {
				p.catchUps.Add(due - done - 1)
			}
			for done < due {
				handler()
				done++
				p.ticks.Add(1)
			}
		}
	}
}

// Ticks returns the number of handler invocations so far.
func (p *Periodic) Ticks() uint64 {
	return p.ticks.Load()
}

// CatchUps returns how many invocations ran late to make up for a missed period.
func (p *Periodic) CatchUps() uint64 {
	return p.catchUps.Load()
}
