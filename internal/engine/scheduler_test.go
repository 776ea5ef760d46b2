package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// recordingSender captures every batch handed to it.
type recordingSender struct {
	mu      sync.Mutex
	batches [][]event.Record
	empty   int
	sent    chan struct{}
	block   chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(chan struct{}, 64)}
}

func (s *recordingSender) Send(ctx context.Context, batch []event.Record) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	if len(batch) == 0 {
		s.empty++
	} else {
		s.batches = append(s.batches, batch)
	}
	s.mu.Unlock()
	s.sent <- struct{}{}
}

func (s *recordingSender) Batches() [][]event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]event.Record, len(s.batches))
	copy(out, s.batches)
	return out
}

func (s *recordingSender) waitSent(t *testing.T) {
	t.Helper()
	select {
	case <-s.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send")
	}
}

func rec(action string) event.Record {
	return event.Record{Event: event.Event{Action: action}, Timestamp: epoch}
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, engine.ModeInstant, engine.ModeFor(0))
	assert.Equal(t, engine.ModeInstant, engine.ModeFor(-time.Minute))
	assert.Equal(t, engine.ModePeriodic, engine.ModeFor(time.Millisecond))
	assert.Equal(t, "periodic", engine.ModePeriodic.String())
	assert.Equal(t, "instant", engine.ModeInstant.String())
}

func TestIntervalFromMinutes(t *testing.T) {
	assert.Equal(t, 30*time.Minute, engine.IntervalFromMinutes(nil))

	zero := 0.0
	assert.Equal(t, time.Duration(0), engine.IntervalFromMinutes(&zero))

	five := 5.0
	assert.Equal(t, 300000*time.Millisecond, engine.IntervalFromMinutes(&five))

	half := 0.5
	assert.Equal(t, 30*time.Second, engine.IntervalFromMinutes(&half))
}

func TestScheduler_PeriodicBatchesPerTick(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	s := engine.NewScheduler(time.Minute, buf, sender, engine.WithClock(clock))
	s.Start()
	defer s.Close(context.Background())

	require.Equal(t, engine.ModePeriodic, s.Mode())
	clock.WaitForTickers(1)

	s.Submit(context.Background(), rec("A"))
	s.Submit(context.Background(), rec("B"))
	assert.Empty(t, sender.Batches(), "nothing sent before the tick")

	clock.Advance(time.Minute)
	sender.waitSent(t)

	batches := sender.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "A", batches[0][0].Event.Action)
	assert.Equal(t, "B", batches[0][1].Event.Action)
	assert.Equal(t, 0, buf.Len())
}

func TestScheduler_EmptyTickIsNoop(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	sender := newRecordingSender()
	s := engine.NewScheduler(time.Minute, engine.NewBuffer(), sender, engine.WithClock(clock))
	s.Start()

	clock.WaitForTickers(1)
	clock.Advance(time.Minute)
	clock.Advance(time.Minute)

	require.NoError(t, s.Close(context.Background()))
	assert.Empty(t, sender.Batches())
	assert.Equal(t, 0, sender.empty)
}

func TestScheduler_HungSendDoesNotBlockTicks(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	sender.block = make(chan struct{})
	s := engine.NewScheduler(time.Minute, buf, sender, engine.WithClock(clock))
	s.Start()
	clock.WaitForTickers(1)

	buf.Push(rec("first"))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return buf.Len() == 0 }, 2*time.Second, time.Millisecond)

	// The first send is stuck; the next tick must still drain.
	buf.Push(rec("second"))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return buf.Len() == 0 }, 2*time.Second, time.Millisecond)

	close(sender.block)
	sender.waitSent(t)
	sender.waitSent(t)
	assert.Len(t, sender.Batches(), 2)
	require.NoError(t, s.Close(context.Background()))
}

func TestScheduler_InstantSendsEachRecord(t *testing.T) {
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	s := engine.NewScheduler(0, buf, sender)
	s.Start()

	require.Equal(t, engine.ModeInstant, s.Mode())
	assert.Equal(t, time.Duration(0), s.Interval())

	for _, a := range []string{"A", "B", "C"} {
		s.Submit(context.Background(), rec(a))
	}

	batches := sender.Batches()
	require.Len(t, batches, 3)
	for i, a := range []string{"A", "B", "C"} {
		require.Len(t, batches[i], 1)
		assert.Equal(t, a, batches[i][0].Event.Action)
	}
	assert.Equal(t, 0, buf.Len())
	require.NoError(t, s.Close(context.Background()))
}

func TestScheduler_InstantRetriesPendingBeforeNewRecord(t *testing.T) {
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	s := engine.NewScheduler(0, buf, sender)

	// A previous send failed and pushed its record back.
	buf.Push(rec("failed-earlier"))

	s.Submit(context.Background(), rec("new"))

	batches := sender.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, "failed-earlier", batches[0][0].Event.Action)
	assert.Equal(t, "new", batches[1][0].Event.Action)
}

func TestScheduler_InstantStartsNoTicker(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	s := engine.NewScheduler(0, engine.NewBuffer(), newRecordingSender(), engine.WithClock(clock))
	s.Start()
	s.Start()
	assert.Equal(t, 0, clock.ActiveTickers())
	require.NoError(t, s.Close(context.Background()))
}

func TestScheduler_FlushSendsImmediately(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	s := engine.NewScheduler(time.Hour, buf, sender, engine.WithClock(clock))

	s.Submit(context.Background(), rec("A"))
	s.Flush(context.Background())

	require.Len(t, sender.Batches(), 1)
	assert.Equal(t, 0, buf.Len())
}

func TestScheduler_CloseFlushesAndStopsTicker(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	s := engine.NewScheduler(time.Minute, buf, sender, engine.WithClock(clock))
	s.Start()
	clock.WaitForTickers(1)

	s.Submit(context.Background(), rec("last"))
	require.NoError(t, s.Close(context.Background()))

	batches := sender.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "last", batches[0][0].Event.Action)
	assert.Equal(t, 0, clock.ActiveTickers())

	// Idempotent, and Start after Close does nothing.
	require.NoError(t, s.Close(context.Background()))
	s.Start()
	assert.Equal(t, 0, clock.ActiveTickers())
}

func TestScheduler_CloseHonorsDeadline(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	buf := engine.NewBuffer()
	sender := newRecordingSender()
	sender.block = make(chan struct{})
	s := engine.NewScheduler(time.Minute, buf, sender, engine.WithClock(clock))
	s.Start()
	clock.WaitForTickers(1)

	buf.Push(rec("stuck"))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return buf.Len() == 0 }, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Cancelling the send context releases the stuck send.
	sender.waitSent(t)
}
