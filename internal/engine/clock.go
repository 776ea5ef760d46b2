package engine

import "time"

// Clock abstracts the time operations the pipeline needs. Production code
// uses RealClock; tests inject a fake with deterministic time control.
type Clock interface {
	// Now returns the current time. Used to stamp captured records.
	Now() time.Time

	// NewTicker returns a Ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers periodic ticks on C. Ticks are dropped rather than
// queued when the consumer falls behind.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
