package interfaces

import (
	"context"
	"sync/atomic"
	"time"
)

// Throttle is the adaptive per-call delay an adapter imposes on itself in
// addition to the shared hard rate limit. When the exchange signals soft
// rate pressure (a rate-limit error class), the control loop raises the
// delay; it is capped at 1.5x its default value and never decreases
// automatically for the lifetime of the process.
type Throttle struct {
	def    time.Duration
	step   time.Duration
	period atomic.Int64
}

// NewThrottle creates a throttle with the given default delay. A zero
// default disables self-throttling until the first Raise.
func NewThrottle(def time.Duration) *Throttle {
	t := &Throttle{
		def:  def,
		step: def / 4,
	}
	if t.step <= 0 {
		t.step = 100 * time.Millisecond
	}
	t.period.Store(int64(def))
	return t
}

// Period returns the current per-call delay.
func (t *Throttle) Period() time.Duration {
	return time.Duration(t.period.Load())
}

// Raise increases the per-call delay by one step, capped at 1.5x the
// default (or 1.5x one step when the default is zero).
func (t *Throttle) Raise() {
	cap64 := int64(t.def + t.def/2)
	if cap64 <= 0 {
		cap64 = int64(t.step + t.step/2)
	}
	for {
		cur := t.period.Load()
		if cur >= cap64 {
			return
		}
		next := cur + int64(t.step)
		if next > cap64 {
			next = cap64
		}
		if t.period.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Wait sleeps for the current period or until ctx is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	period := t.Period()
	if period <= 0 {
		return nil
	}
	timer := time.NewTimer(period)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
