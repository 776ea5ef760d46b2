package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/pulse/internal/engine"
)

// FakeClock is a deterministic engine.Clock. Time stands still until
// Advance is called; tickers fire only when the clock moves past their
// deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	tickers        []*fakeTicker
	tickersChanged *sync.Cond
}

// NewFakeClock returns a FakeClock initialized to initial.
func NewFakeClock(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.tickersChanged = sync.NewCond(&c.mu)
	return c
}

type fakeTicker struct {
	clock    *FakeClock
	channel  chan time.Time
	deadline time.Time
	interval time.Duration
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.channel }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
	t.clock.tickersChanged.Broadcast()
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker implements engine.Clock. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) engine.Ticker {
	if d <= 0 {
		panic("testutil: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{
		clock:    c,
		channel:  make(chan time.Time, 1),
		deadline: c.current.Add(d),
		interval: d,
	}
	c.tickers = append(c.tickers, t)
	c.tickersChanged.Broadcast()
	return t
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline falls within the new time, in deadline order.
//
// Channel sends are non-blocking, matching time.Ticker: if an advance
// spans several intervals and the consumer has not drained the channel,
// the extra ticks are dropped. Tests that need one observable tick per
// interval should advance one interval at a time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		toFire := c.collectExpired(target)
		if len(toFire) == 0 {
			return
		}
		sort.Slice(toFire, func(i, j int) bool {
			return toFire[i].deadline.Before(toFire[j].deadline)
		})
		for _, t := range toFire {
			select {
			case t.channel <- target:
			default:
			}
		}
	}
}

// collectExpired reschedules expired tickers and returns them.
// Must be called without c.mu held.
func (c *FakeClock) collectExpired(target time.Time) []*fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toFire []*fakeTicker
	remaining := c.tickers[:0]
	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		remaining = append(remaining, t)
		if !t.deadline.After(target) {
			toFire = append(toFire, t)
			t.deadline = t.deadline.Add(t.interval)
		}
	}
	c.tickers = remaining
	return toFire
}

// WaitForTickers blocks until at least n tickers are active. This
// eliminates the race between a goroutine creating a ticker and the test
// advancing the clock.
func (c *FakeClock) WaitForTickers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.tickersChanged.Wait()
	}
}

// ActiveTickers returns the number of tickers not yet stopped.
func (c *FakeClock) ActiveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}
