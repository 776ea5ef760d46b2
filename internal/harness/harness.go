package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/analytics"
	"github.com/roach88/pulse/internal/collector"
	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/identity"
	"github.com/roach88/pulse/internal/session"
	"github.com/roach88/pulse/internal/testutil"
)

// Epoch is the fake clock's starting time for every run.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// settleTimeout bounds every wait for asynchronous deliveries.
const settleTimeout = 5 * time.Second

// errIdentityUnavailable is returned by the provider of scenarios without
// a user.
var errIdentityUnavailable = errors.New("identity unavailable")

// Harness drives one scenario run.
type Harness struct {
	tracker   *analytics.Tracker
	clock     *testutil.FakeClock
	collector *collector.Collector
	notifier  *session.Broadcaster
	sink      *debuglog.RecordingSink
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh in-process collector, an in-memory session slot,
// a fake clock frozen at Epoch, and sequential session ids.
//
// Execution flow:
// 1. Build a Tracker pointed at the collector
// 2. Execute the steps in order
// 3. Wait for in-flight deliveries to settle and snapshot the traffic
// 4. Close the Tracker
// 5. Evaluate assertions
//
// Records still buffered when the steps end are not part of the result;
// end with a flush step to deliver them.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coll := collector.New(logger)
	coll.RespondWith(scenario.Responses...)
	srv := httptest.NewServer(coll)
	defer srv.Close()

	values := config.Values{}
	for k, v := range scenario.Config {
		values.Set(config.Namespace+"."+k, v)
	}
	values.Set(config.KeyHost, srv.URL)

	h := &Harness{
		clock:     testutil.NewFakeClock(Epoch),
		collector: coll,
		notifier:  session.NewBroadcaster(),
		sink:      &debuglog.RecordingSink{},
		logger:    logger,
	}

	opts := analytics.Options{
		Config:     values,
		ErrorSink:  h.sink,
		Identity:   provider(scenario.User),
		Notifier:   h.notifier,
		Generator:  testutil.NewSequenceGenerator(""),
		HTTPClient: srv.Client(),
		Clock:      h.clock,
		Logger:     logger,
	}
	if len(scenario.Directory) > 0 {
		dir, err := directory(scenario.Directory)
		if err != nil {
			return nil, err
		}
		opts.Directory = dir
	}

	tracker, err := analytics.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}
	h.tracker = tracker

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			tracker.Close(ctx)
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if err := h.settle(); err != nil {
		tracker.Close(ctx)
		return nil, err
	}
	result := h.snapshot()

	closeCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := tracker.Close(closeCtx); err != nil {
		h.logger.Warn("tracker close", "error", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch {
	case step.Capture != nil:
		h.tracker.CaptureEvent(ctx, step.Capture.Event())
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	case step.Session != "":
		state, err := sessionState(step.Session)
		if err != nil {
			return err
		}
		h.notifier.Publish(state)
	case step.Flush:
		h.tracker.Flush(ctx)
	case step.Await > 0:
		if !h.collector.WaitFor(step.Await, settleTimeout) {
			return fmt.Errorf("await: got %d requests, want at least %d", h.collector.Count(), step.Await)
		}
		return h.settle()
	}
	return nil
}

// settle waits until every record the collector received has been
// accounted for by the sender as delivered, requeued, or dropped.
func (h *Harness) settle() error {
	deadline := time.Now().Add(settleTimeout)
	for {
		received := len(h.collector.Records())
		st := h.tracker.Stats()
		processed := st.Records + st.Retried + st.Dropped
		if processed >= int64(received) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("settle: %d of %d received records processed", processed, received)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *Harness) snapshot() *Result {
	result := NewResult()
	for i, req := range h.collector.Requests() {
		result.Requests = append(result.Requests, Request{
			Seq:           i + 1,
			Authorization: req.Authorization,
			Records:       req.Records,
		})
	}
	for _, err := range h.sink.Errors() {
		if code := engine.CodeOf(err); code != "" {
			result.Reports = append(result.Reports, string(code))
			continue
		}
		result.Diagnostics++
	}
	return result
}

func provider(user string) identity.Provider {
	if user == "" {
		return identity.ProviderFunc(func(context.Context) (identity.Identity, error) {
			return identity.Identity{}, errIdentityUnavailable
		})
	}
	return identity.Static{UserEntityRef: user, OwnershipEntityRefs: []string{user}}
}

func directory(entries map[string]any) (*identity.FileDirectory, error) {
	data, err := yaml.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode directory: %w", err)
	}
	dir, err := identity.ParseDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	return dir, nil
}
