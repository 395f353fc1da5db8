package publisher

import (
	"context"
	"time"
)

// Clock paces the loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// rate schedules ticks at a fixed period. A tick that overruns its budget
// makes the next one start immediately and restarts the schedule from there,
// so missed ticks are never made up.
type rate struct {
	clock  Clock
	period time.Duration
	next   time.Time
}

func newRate(c Clock, hz int) *rate {
	return &rate{clock: c, period: time.Second / time.Duration(hz), next: c.Now()}
}

func (r *rate) sleep(ctx context.Context) error {
	r.next = r.next.Add(r.period)
	now := r.clock.Now()
	wait := r.next.Sub(now)
	if wait <= 0 {
		r.next = now
		return ctx.Err()
	}
	return r.clock.Sleep(ctx, wait)
}
