package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/event"
)

// DefaultInterval is the flush interval used when none is configured.
const DefaultInterval = 30 * time.Minute

// Mode selects how the Scheduler delivers records.
type Mode int

const (
	// ModePeriodic buffers records and flushes them on a ticker.
	ModePeriodic Mode = iota + 1
	// ModeInstant sends every record as soon as it is submitted.
	ModeInstant
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePeriodic:
		return "periodic"
	case ModeInstant:
		return "instant"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor returns the delivery mode implied by interval. A zero (or
// negative) interval selects instant delivery.
func ModeFor(interval time.Duration) Mode {
	if interval <= 0 {
		return ModeInstant
	}
	return ModePeriodic
}

// IntervalFromMinutes converts a configured interval in minutes to a
// duration. nil means not configured and yields DefaultInterval.
func IntervalFromMinutes(minutes *float64) time.Duration {
	if minutes == nil {
		return DefaultInterval
	}
	return time.Duration(*minutes * float64(time.Minute))
}

// Sender delivers a batch. Implementations own failure handling,
// including pushing failed records back for retry.
type Sender interface {
	Send(ctx context.Context, batch []event.Record)
}

// Scheduler is the sole owner of delivery timing.
//
// Lifecycle: NewScheduler → Start → Submit... → Close. Submit before
// Start is allowed in periodic mode (records wait for the first tick).
//
// Thread-safety: all methods may be called concurrently.
type Scheduler struct {
	mode     Mode
	interval time.Duration
	buf      *Buffer
	sender   Sender
	clock    Clock
	log      *debuglog.Logger

	// sendCtx is the parent of every tick-driven send; cancelled by Close
	// once in-flight sends have had their chance to finish.
	sendCtx    context.Context
	cancelSend context.CancelFunc
	sends      sync.WaitGroup

	mu       sync.Mutex
	ticker   Ticker
	stop     chan struct{}
	loopDone chan struct{}
	closed   bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source (default RealClock).
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithSchedulerLogger sets the diagnostic logger.
func WithSchedulerLogger(l *debuglog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler creates a Scheduler. The mode is fixed here from interval
// and cannot change for the Scheduler's lifetime.
func NewScheduler(interval time.Duration, buf *Buffer, sender Sender, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		mode:       ModeFor(interval),
		interval:   interval,
		buf:        buf,
		sender:     sender,
		clock:      RealClock(),
		sendCtx:    ctx,
		cancelSend: cancel,
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = debuglog.New(false, nil, nil)
	}
	return s
}

// Mode returns the delivery mode chosen at construction.
func (s *Scheduler) Mode() Mode {
	return s.mode
}

// Interval returns the configured flush interval (0 in instant mode).
func (s *Scheduler) Interval() time.Duration {
	if s.mode == ModeInstant {
		return 0
	}
	return s.interval
}

// Start begins the flush cycle in periodic mode. It is a no-op in instant
// mode, when already started, or after Close.
func (s *Scheduler) Start() {
	if s.mode != ModePeriodic {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil || s.closed {
		return
	}

	// Create the ticker before returning so the first tick is registered
	// by the time Start returns.
	s.ticker = s.clock.NewTicker(s.interval)
	go s.loop(s.ticker)

	s.log.Log(fmt.Sprintf("Starting flush cycle with interval: %dms", s.interval.Milliseconds()), false)
}

func (s *Scheduler) loop(ticker Ticker) {
	defer close(s.loopDone)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C():
			s.tick()
		}
	}
}

// tick drains the buffer and hands the batch to the sender on its own
// goroutine. An empty buffer is a no-op.
func (s *Scheduler) tick() {
	batch := s.buf.DrainAll()
	if len(batch) == 0 {
		return
	}
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		s.sender.Send(s.sendCtx, batch)
	}()
}

// Submit routes a newly captured record according to the mode.
//
// Periodic: the record is buffered until the next tick.
//
// Instant: records awaiting retry from earlier failures are sent first as
// their own batch, then the new record is sent as a single-record batch.
// Both sends complete before Submit returns; the record is never retained
// unless its send fails.
func (s *Scheduler) Submit(ctx context.Context, r event.Record) {
	switch s.mode {
	case ModePeriodic:
		s.buf.Push(r)
	case ModeInstant:
		if pending := s.buf.DrainAll(); len(pending) > 0 {
			s.sender.Send(ctx, pending)
		}
		s.sender.Send(ctx, []event.Record{r})
	}
}

// Flush drains the buffer and sends it synchronously, in either mode.
// An empty buffer still reaches the sender, which reports that there is
// nothing to send.
func (s *Scheduler) Flush(ctx context.Context) {
	s.sender.Send(ctx, s.buf.DrainAll())
}

// Close stops the ticker, performs one final flush, and waits for
// in-flight sends. If ctx expires first, outstanding sends are cancelled
// and ctx's error is returned. Close is idempotent.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.ticker != nil
	if started {
		s.ticker.Stop()
		close(s.stop)
	}
	s.mu.Unlock()

	if started {
		<-s.loopDone
	}

	if s.buf.Len() > 0 {
		s.Flush(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.sends.Wait()
		close(done)
	}()

	defer s.cancelSend()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight sends: %w", ctx.Err())
	}
}
