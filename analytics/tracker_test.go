package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pulse/internal/collector"
	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/identity"
	"github.com/roach88/pulse/internal/session"
	"github.com/roach88/pulse/internal/testutil"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

const testUser = "user:default/test-user"

type fixture struct {
	tracker   *Tracker
	collector *collector.Collector
	clock     *testutil.FakeClock
	sink      *debuglog.RecordingSink
	slot      *session.MemorySlot
}

type fixtureOption func(*Options, config.Values)

func withConfig(key string, val any) fixtureOption {
	return func(_ *Options, v config.Values) { v.Set(key, val) }
}

func withOptions(fn func(*Options)) fixtureOption {
	return func(o *Options, _ config.Values) { fn(o) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	c, url := testutil.NewCollectorServer(t)
	f := &fixture{
		collector: c,
		clock:     testutil.NewFakeClock(epoch),
		sink:      &debuglog.RecordingSink{},
		slot:      session.NewMemorySlot(),
	}

	values := config.Values{config.KeyHost: url}
	o := Options{
		Config:    values,
		ErrorSink: f.sink,
		Identity:  identity.Static{UserEntityRef: testUser, OwnershipEntityRefs: []string{testUser}},
		Slot:      f.slot,
		Generator: testutil.NewSequenceGenerator(""),
		Clock:     f.clock,
		Logger:    testutil.QuietLogger(),
	}
	for _, opt := range opts {
		opt(&o, values)
	}

	tr, err := New(o)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close(context.Background()) })
	f.tracker = tr
	return f
}

func click(subject string) Event {
	return Event{
		Action:  "click",
		Subject: subject,
		Context: EventContext{PluginID: "catalog", RouteRef: "root", Extension: "App"},
	}
}

func decode(t *testing.T, req collector.Request) []event.Record {
	t.Helper()
	var out []event.Record
	require.NoError(t, json.Unmarshal(req.Body, &out))
	return out
}

func TestNew_MissingHostFailsConstruction(t *testing.T) {
	sink := &debuglog.RecordingSink{}
	tr, err := New(Options{Config: config.Values{}, ErrorSink: sink, Logger: testutil.QuietLogger()})

	require.Error(t, err)
	assert.Nil(t, tr)
	assert.True(t, engine.IsConfigError(err))
	require.Equal(t, 1, sink.Len(), "config errors reach the sink without debug")
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(Options{Logger: testutil.QuietLogger()})
	require.Error(t, err)
	assert.True(t, engine.IsConfigError(err))
}

func TestNew_ModeFromInterval(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, engine.ModePeriodic, f.tracker.Mode())
	assert.Equal(t, 30*time.Minute, f.tracker.Settings().Interval)

	f = newFixture(t, withConfig(config.KeyInterval, 0))
	assert.Equal(t, engine.ModeInstant, f.tracker.Mode())
}

func TestNew_UnrepresentableIntervalFailsConstruction(t *testing.T) {
	for _, minutes := range []float64{1e12, 1e-12} {
		sink := &debuglog.RecordingSink{}
		tr, err := New(Options{
			Config:    config.Values{config.KeyHost: "http://localhost", config.KeyInterval: minutes},
			ErrorSink: sink,
			Logger:    testutil.QuietLogger(),
		})

		require.Error(t, err, "interval %g", minutes)
		assert.Nil(t, tr)
		assert.True(t, engine.IsConfigError(err))
		assert.Equal(t, 1, sink.Len())
	}
}

func TestScenario_TenMinuteInterval(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 10))
	f.clock.WaitForTickers(1)

	f.tracker.CaptureEvent(context.Background(), click("button"))

	f.clock.Advance(9*time.Minute + 59*time.Second)
	assert.False(t, f.collector.WaitFor(1, 50*time.Millisecond), "no request before the tick")

	f.clock.Advance(time.Second)
	require.True(t, f.collector.WaitFor(1, 2*time.Second))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 1)
	records := decode(t, reqs[0])
	require.Len(t, records, 1)
	assert.Equal(t, "button", records[0].Event.Subject)
	assert.Equal(t, testUser, records[0].User)
	assert.Equal(t, "session0000000001", records[0].SessionID)
	assert.True(t, epoch.Equal(records[0].Timestamp))
}

func TestScenario_PeriodicOneRequestPerNonEmptyTick(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 1))
	f.clock.WaitForTickers(1)
	ctx := context.Background()

	f.tracker.CaptureEvent(ctx, click("a"))
	f.tracker.CaptureEvent(ctx, click("b"))
	f.clock.Advance(time.Minute)
	require.True(t, f.collector.WaitFor(1, 2*time.Second))

	// Empty tick: nothing sent.
	f.clock.Advance(time.Minute)

	f.tracker.CaptureEvent(ctx, click("c"))
	f.clock.Advance(time.Minute)
	require.True(t, f.collector.WaitFor(2, 2*time.Second))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 2)

	first := decode(t, reqs[0])
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].Event.Subject)
	assert.Equal(t, "b", first[1].Event.Subject)

	second := decode(t, reqs[1])
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].Event.Subject)
}

func TestScenario_InstantThreeEventsThreeRequests(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 0))
	ctx := context.Background()

	for _, s := range []string{"one", "two", "three"} {
		f.tracker.CaptureEvent(ctx, click(s))
	}

	reqs := f.collector.Requests()
	require.Len(t, reqs, 3)
	for i, s := range []string{"one", "two", "three"} {
		records := decode(t, reqs[i])
		require.Len(t, records, 1)
		assert.Equal(t, s, records[0].Event.Subject)
	}
	assert.Equal(t, 0, f.tracker.Stats().Buffered)
}

func TestScenario_IdentityRejected(t *testing.T) {
	f := newFixture(t,
		withConfig(config.KeyInterval, 0),
		withOptions(func(o *Options) {
			o.Identity = identity.ProviderFunc(func(context.Context) (identity.Identity, error) {
				return identity.Identity{}, errors.New("Identity error")
			})
		}),
	)

	f.tracker.CaptureEvent(context.Background(), click("x"))
	f.tracker.Flush(context.Background())

	assert.Equal(t, 0, f.collector.Count())
	st := f.tracker.Stats()
	assert.Equal(t, int64(0), st.Captured)
	assert.Equal(t, int64(1), st.Skipped)
	assert.Equal(t, 0, st.Buffered)
}

func TestScenario_NoIdentityProvider(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.Identity = nil }))

	f.tracker.CaptureEvent(context.Background(), click("x"))
	assert.Equal(t, 0, f.tracker.Stats().Buffered)
}

func TestScenario_TeamMetadataToggle(t *testing.T) {
	var lookups int
	var mu sync.Mutex
	dir := identity.DirectoryFunc(func(_ context.Context, ref string) (event.Metadata, error) {
		mu.Lock()
		lookups++
		mu.Unlock()
		return json.RawMessage(`{"kind":"Group","metadata":{"name":"team-a"}}`), nil
	})

	t.Run("off", func(t *testing.T) {
		f := newFixture(t,
			withConfig(config.KeyInterval, 0),
			withOptions(func(o *Options) { o.Directory = dir }),
		)
		f.tracker.CaptureEvent(context.Background(), click("x"))

		reqs := f.collector.Requests()
		require.Len(t, reqs, 1)
		assert.NotContains(t, string(reqs[0].Body), "teamMetadata")
		assert.Equal(t, 0, lookups)
	})

	t.Run("on", func(t *testing.T) {
		f := newFixture(t,
			withConfig(config.KeyInterval, 0),
			withConfig(config.KeyIncludeTeamMetadata, true),
			withOptions(func(o *Options) { o.Directory = dir }),
		)
		f.tracker.CaptureEvent(context.Background(), click("x"))

		reqs := f.collector.Requests()
		require.Len(t, reqs, 1)
		records := decode(t, reqs[0])
		require.Len(t, records, 1)
		assert.JSONEq(t, `{"kind":"Group","metadata":{"name":"team-a"}}`, string(records[0].TeamMetadata))
		assert.Equal(t, 1, lookups)
	})
}

func TestScenario_MetadataFailureStillCaptures(t *testing.T) {
	f := newFixture(t,
		withConfig(config.KeyInterval, 0),
		withConfig(config.KeyIncludeTeamMetadata, true),
		withConfig(config.KeyDebug, true),
		withOptions(func(o *Options) {
			o.Directory = identity.DirectoryFunc(func(context.Context, string) (event.Metadata, error) {
				return nil, errors.New("Catalog API error")
			})
		}),
	)

	f.tracker.CaptureEvent(context.Background(), click("x"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, string(reqs[0].Body), "teamMetadata")
	assert.GreaterOrEqual(t, f.sink.Len(), 1)
}

func TestScenario_AuthPrecedence(t *testing.T) {
	f := newFixture(t,
		withConfig(config.KeyInterval, 0),
		withConfig(config.KeyBasicAuthToken, "dXNlcjpwYXNz"),
		withConfig(config.KeyBearerAuthToken, "token"),
	)
	f.tracker.CaptureEvent(context.Background(), click("x"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Basic dXNlcjpwYXNz", reqs[0].Authorization)
}

func TestScenario_InstantRetryOnNextCapture(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 0))
	f.collector.RespondWith(http.StatusServiceUnavailable)
	ctx := context.Background()

	f.tracker.CaptureEvent(ctx, click("first"))
	assert.Equal(t, 1, f.tracker.Stats().Buffered, "failed record waits for the next capture")

	f.tracker.CaptureEvent(ctx, click("second"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "first", decode(t, reqs[1])[0].Event.Subject)
	assert.Equal(t, "second", decode(t, reqs[2])[0].Event.Subject)
	assert.Equal(t, 0, f.tracker.Stats().Buffered)
	assert.Equal(t, 0, f.sink.Len())
}

func TestScenario_RetryCeilingThroughTicks(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 1))
	f.collector.RespondWith(500, 500, 500, 500)
	f.clock.WaitForTickers(1)

	f.tracker.CaptureEvent(context.Background(), click("doomed"))
	for i := 1; i <= 4; i++ {
		f.clock.Advance(time.Minute)
		require.True(t, f.collector.WaitFor(i, 2*time.Second), "request %d", i)
		require.Eventually(t, func() bool {
			st := f.tracker.Stats()
			return st.Retried+st.Dropped == int64(i)
		}, 2*time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return f.sink.Len() == 1 }, 2*time.Second, time.Millisecond)
	assert.True(t, engine.IsMaxRetriesError(f.sink.Errors()[0]))

	st := f.tracker.Stats()
	assert.Equal(t, int64(3), st.Retried)
	assert.Equal(t, int64(1), st.Dropped)
	assert.Equal(t, 0, st.Buffered)
}

func TestSession_ReusedAcrossCaptures(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 0))
	ctx := context.Background()

	f.tracker.CaptureEvent(ctx, click("a"))
	f.tracker.CaptureEvent(ctx, click("b"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, decode(t, reqs[0])[0].SessionID, decode(t, reqs[1])[0].SessionID)
	assert.Equal(t, "session0000000001", f.tracker.SessionID())
}

func TestSession_SignInRotatesSignOutClears(t *testing.T) {
	notifier := session.NewBroadcaster()
	f := newFixture(t,
		withConfig(config.KeyInterval, 0),
		withOptions(func(o *Options) { o.Notifier = notifier }),
	)
	ctx := context.Background()

	f.tracker.CaptureEvent(ctx, click("before"))
	notifier.Publish(SignedIn)
	f.tracker.CaptureEvent(ctx, click("after"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "session0000000001", decode(t, reqs[0])[0].SessionID)
	assert.Equal(t, "session0000000002", decode(t, reqs[1])[0].SessionID)

	notifier.Publish(SignedOut)
	_, ok := f.slot.Lookup(session.Key)
	assert.False(t, ok)

	f.tracker.OnSessionStateChange(ctx, SignedIn)
	e, ok := f.slot.Lookup(session.Key)
	require.True(t, ok)
	assert.Equal(t, "session0000000003", e.Value)
}

func TestSession_ExternalWriteHonored(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 0))
	ctx := context.Background()

	require.NoError(t, f.slot.Write(ctx, session.Entry{Name: session.Key, Value: "othertab00001"}))
	f.tracker.CaptureEvent(ctx, click("x"))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "othertab00001", decode(t, reqs[0])[0].SessionID)
}

func TestCapture_InvalidEventRejected(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 0))
	f.tracker.CaptureEvent(context.Background(), Event{Subject: "no action"})

	assert.Equal(t, 0, f.collector.Count())
	assert.Equal(t, int64(1), f.tracker.Stats().Skipped)
}

func TestCapture_PanickingProviderContained(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) {
		o.Identity = identity.ProviderFunc(func(context.Context) (identity.Identity, error) {
			panic("provider exploded")
		})
	}))

	assert.NotPanics(t, func() {
		f.tracker.CaptureEvent(context.Background(), click("x"))
	})
	assert.Equal(t, int64(1), f.tracker.Stats().Skipped)
}

func TestClose_FlushesBufferedRecords(t *testing.T) {
	f := newFixture(t, withConfig(config.KeyInterval, 60))
	ctx := context.Background()

	f.tracker.CaptureEvent(ctx, click("a"))
	f.tracker.CaptureEvent(ctx, click("b"))
	require.NoError(t, f.tracker.Close(ctx))

	reqs := f.collector.Requests()
	require.Len(t, reqs, 1)
	assert.Len(t, decode(t, reqs[0]), 2)
}

func TestFlush_Manual(t *testing.T) {
	f := newFixture(t)
	f.tracker.CaptureEvent(context.Background(), click("a"))
	assert.Equal(t, 1, f.tracker.Stats().Buffered)

	f.tracker.Flush(context.Background())
	assert.Equal(t, 1, f.collector.Count())

	st := f.tracker.Stats()
	assert.Equal(t, 0, st.Buffered)
	assert.Equal(t, int64(1), st.Captured)
	assert.Equal(t, int64(1), st.Batches)
	assert.Equal(t, int64(1), st.Records)
}

func TestCapture_ConcurrentCapturesAllDelivered(t *testing.T) {
	f := newFixture(t)
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			f.tracker.CaptureEvent(context.Background(), click("c"))
		}()
	}
	wg.Wait()

	f.tracker.Flush(context.Background())
	require.Equal(t, 1, f.collector.Count())
	assert.Len(t, decode(t, f.collector.Requests()[0]), n)
}
