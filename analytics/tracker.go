// Package analytics is the entry point for hosts that want to capture
// usage events and deliver them to a remote collector.
//
// A Tracker wires the pipeline together:
//
//	CaptureEvent → session id → user (+ team metadata) → record
//	  → buffer (periodic) or immediate send (instant) → collector
//
// Construction fails only when the configuration is unusable. After that,
// CaptureEvent never fails and never panics; problems surface through the
// error sink, gated by the debug setting except for dropped records.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/roach88/pulse/internal/config"
	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/delivery"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/identity"
	"github.com/roach88/pulse/internal/session"
)

// Options are the host collaborators of a Tracker. Only Config is
// required.
type Options struct {
	// Config supplies the app.analytics.generic settings.
	Config config.Source

	// ErrorSink receives debug-gated diagnostics and unconditional
	// data-loss reports.
	ErrorSink debuglog.ErrorSink

	// Identity resolves the current user. Without it nothing is captured.
	Identity identity.Provider

	// Directory resolves team metadata when includeTeamMetadata is set.
	Directory identity.Directory

	// Slot persists the session id. Defaults to an in-memory slot.
	Slot session.Slot

	// Notifier delivers sign-in and sign-out transitions.
	Notifier session.Notifier

	// Generator overrides session id generation.
	Generator session.Generator

	// HTTPClient overrides the client used for delivery.
	HTTPClient *http.Client

	// Clock overrides the time source for timestamps and the flush ticker.
	Clock engine.Clock

	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Captured int64 // records accepted into the pipeline
	Skipped  int64 // captures dropped before enrichment completed
	Buffered int   // records currently awaiting delivery
	delivery.Stats
}

// Tracker captures analytics events and delivers them.
//
// Thread-safety: all methods may be called concurrently.
type Tracker struct {
	settings config.Settings
	log      *debuglog.Logger
	clock    engine.Clock

	sessions *session.Store
	resolver *identity.Resolver
	buf      *engine.Buffer
	sender   *delivery.Sender
	sched    *engine.Scheduler

	unsubscribe func()

	captured atomic.Int64
	skipped  atomic.Int64
}

// New builds and starts a Tracker. A configuration error is reported to
// the error sink and returned; no Tracker is created.
func New(opts Options) (*Tracker, error) {
	if opts.Config == nil {
		err := engine.NewConfigError(config.Namespace, fmt.Errorf("no config source"))
		debuglog.New(false, opts.ErrorSink, opts.Logger).Report(err)
		return nil, err
	}
	settings, err := config.Read(opts.Config)
	if err != nil {
		debuglog.New(false, opts.ErrorSink, opts.Logger).Report(err)
		return nil, err
	}

	log := debuglog.New(settings.Debug, opts.ErrorSink, opts.Logger)

	clock := opts.Clock
	if clock == nil {
		clock = engine.RealClock()
	}
	slot := opts.Slot
	if slot == nil {
		slot = session.NewMemorySlot()
	}

	storeOpts := []session.Option{session.WithLogger(log)}
	if opts.Generator != nil {
		storeOpts = append(storeOpts, session.WithGenerator(opts.Generator))
	}
	sessions := session.NewStore(slot, storeOpts...)

	buf := engine.NewBuffer()
	senderOpts := []delivery.Option{
		delivery.WithLogger(log),
		delivery.WithAuth(delivery.Auth{
			Basic:  settings.BasicAuthToken,
			Bearer: settings.BearerAuthToken,
		}),
	}
	if opts.HTTPClient != nil {
		senderOpts = append(senderOpts, delivery.WithHTTPClient(opts.HTTPClient))
	}
	sender := delivery.NewSender(settings.Host, buf, senderOpts...)

	sched := engine.NewScheduler(settings.Interval, buf, sender,
		engine.WithClock(clock),
		engine.WithSchedulerLogger(log),
	)

	t := &Tracker{
		settings: settings,
		log:      log,
		clock:    clock,
		sessions: sessions,
		resolver: identity.NewResolver(opts.Identity, opts.Directory, log),
		buf:      buf,
		sender:   sender,
		sched:    sched,
	}
	t.unsubscribe = sessions.Subscribe(opts.Notifier)
	sched.Start()

	return t, nil
}

// CaptureEvent enriches ev and hands it to the scheduler. In instant mode
// the record is delivered before CaptureEvent returns.
//
// Captures without a resolvable user are dropped. CaptureEvent never
// panics and reports nothing to the caller.
func (t *Tracker) CaptureEvent(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			t.skipped.Add(1)
			t.log.Log(fmt.Sprintf("Capture panicked: %v", r), true)
		}
	}()

	if err := ev.Validate(); err != nil {
		t.skipped.Add(1)
		t.log.Log(fmt.Sprintf("Rejecting event: %v", err), true)
		return
	}

	// Read once; the same id is used for the whole capture.
	sessionID, err := t.sessions.EnsureID(ctx)
	if err != nil {
		t.log.Log(fmt.Sprintf("Capturing without session id: %v", err), true)
	}

	user, ok := t.resolver.ResolveUser(ctx)
	if !ok {
		t.skipped.Add(1)
		t.log.Log("Skipping event: no user identity", false, "action", ev.Action)
		return
	}

	rec := event.Record{
		Event:     ev,
		Timestamp: t.clock.Now().UTC(),
		SessionID: sessionID,
		User:      user,
	}
	if t.settings.IncludeTeamMetadata {
		if md, ok := t.resolver.ResolveTeamMetadata(ctx, user); ok {
			rec.TeamMetadata = md
		}
	}

	t.captured.Add(1)
	t.log.Log("Capturing event", false,
		"action", ev.Action,
		"subject", ev.Subject,
		"user", user,
		"session", sessionID,
	)
	t.sched.Submit(ctx, rec)
}

// Flush sends everything currently buffered and waits for the request.
func (t *Tracker) Flush(ctx context.Context) {
	t.sched.Flush(ctx)
}

// Close stops the flush cycle, detaches from the session notifier, makes
// one last delivery attempt for buffered records, and waits for in-flight
// requests until ctx is done.
func (t *Tracker) Close(ctx context.Context) error {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	return t.sched.Close(ctx)
}

// OnSessionStateChange applies a sign-in or sign-out transition, for
// hosts that have no Notifier to subscribe to.
func (t *Tracker) OnSessionStateChange(ctx context.Context, state session.State) {
	t.sessions.OnStateChange(ctx, state)
}

// SessionID returns the session id used by the most recent capture.
func (t *Tracker) SessionID() string {
	return t.sessions.Current()
}

// Settings returns the configuration the Tracker was built with.
func (t *Tracker) Settings() config.Settings {
	return t.settings
}

// Mode returns the delivery mode.
func (t *Tracker) Mode() engine.Mode {
	return t.sched.Mode()
}

// Stats returns a snapshot of pipeline counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Captured: t.captured.Load(),
		Skipped:  t.skipped.Load(),
		Buffered: t.buf.Len(),
		Stats:    t.sender.Stats(),
	}
}
