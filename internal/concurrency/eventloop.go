// File: internal/concurrency/eventloop.go
// Package concurrency provides the wakeup primitives behind the per-peer
// transmit event loop.
//
// A loop blocks on a set of coalescing signals plus one deadline timer armed
// at the earliest pending deadline; each wakeup is mapped to a tagged event.

package concurrency

import "time"

// Signal is a coalescing wakeup. Any number of Notify calls before the
// consumer drains C produce a single wakeup. Notify never blocks.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unsignalled Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify marks the signal; it is safe from any goroutine.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that becomes readable once notified.
func (s *Signal) C() <-chan struct{} { return s.ch }

// EarliestDeadline returns the minimum of the non-zero deadlines, or the zero
// time when none is pending.
func EarliestDeadline(deadlines ...time.Time) time.Time {
	var earliest time.Time
	for _, d := range deadlines {
		if d.IsZero() {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

// DeadlineTimer is a reusable timer armed at absolute deadlines.
// It is owned by a single goroutine.
type DeadlineTimer struct {
	t *time.Timer
}

// NewDeadlineTimer creates a stopped timer.
func NewDeadlineTimer() *DeadlineTimer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &DeadlineTimer{t: t}
}

// Arm resets the timer to fire at deadline and returns its channel.
// A zero deadline disarms the timer and returns nil, which blocks forever in
// a select.
func (d *DeadlineTimer) Arm(deadline, now time.Time) <-chan time.Time {
	d.Stop()
	if deadline.IsZero() {
		return nil
	}
	wait := deadline.Sub(now)
	if wait < 0 {
		wait = 0
	}
	d.t.Reset(wait)
	return d.t.C
}

// Stop disarms the timer and drains a pending expiry.
func (d *DeadlineTimer) Stop() {
	if !d.t.Stop() {
		select {
		case <-d.t.C:
		default:
		}
	}
}
