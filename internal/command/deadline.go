package command

import (
	"sync"
	"time"
)

// Clock reads wall time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Deadline tracks an overall time bound across several requests.
//
// The bound starts at the first call to Remaining. Concurrent chunks of one
// operation may share a Deadline.
type Deadline struct {
	mu      sync.Mutex
	overall time.Duration
	clock   Clock
	start   time.Time
	started bool
}

// NewDeadline returns a deadline of overall duration. Zero means unbounded.
// A nil clock uses SystemClock.
func NewDeadline(overall time.Duration, clock Clock) *Deadline {
	if clock == nil {
		clock = SystemClock
	}
	return &Deadline{overall: overall, clock: clock}
}

// Remaining returns the timeout to use for the next request: the time left
// on the overall bound, capped by reqCap. Zero means unbounded. When the
// overall bound has already expired it returns an overall *TimeoutError for
// payload instead, and the request must not be sent.
func (d *Deadline) Remaining(reqCap time.Duration, payload map[string]any) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock.Now()
	if !d.started {
		d.start, d.started = now, true
	}
	if d.overall <= 0 {
		return reqCap, nil
	}
	left := d.overall - now.Sub(d.start)
	if left <= 0 {
		return 0, &TimeoutError{Kind: TimeoutOverall, Payload: payload, Timeout: d.overall}
	}
	if reqCap > 0 && reqCap < left {
		return reqCap, nil
	}
	return left, nil
}

// Reset forgets the start time, so the bound restarts at the next request.
func (d *Deadline) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.start = time.Time{}
}

// Overall returns the configured bound.
func (d *Deadline) Overall() time.Duration {
	return d.overall
}
