package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/analytics"
	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/event"
	"github.com/roach88/pulse/internal/harness"
	"github.com/roach88/pulse/internal/identity"
	"github.com/roach88/pulse/internal/session"
)

// CaptureOptions holds flags for the capture command.
type CaptureOptions struct {
	*RootOptions
	ConfigPath    string
	User          string
	SessionDB     string
	DirectoryPath string
	NoEnv         bool
	Timeout       time.Duration
}

// CaptureResult summarizes a capture run.
type CaptureResult struct {
	Mode      string   `json:"mode"`
	SessionID string   `json:"sessionId,omitempty"`
	Read      int      `json:"read"`
	Captured  int64    `json:"captured"`
	Skipped   int64    `json:"skipped"`
	Delivered int64    `json:"delivered"`
	Batches   int64    `json:"batches"`
	Failures  int64    `json:"failures"`
	Dropped   int64    `json:"dropped"`
	Pending   int      `json:"pending"`
	Reports   []string `json:"reports,omitempty"`
}

func (r CaptureResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode:      %s\n", r.Mode)
	if r.SessionID != "" {
		fmt.Fprintf(&b, "Session:   %s\n", r.SessionID)
	}
	fmt.Fprintf(&b, "Captured:  %d of %d (%d skipped)\n", r.Captured, r.Read, r.Skipped)
	fmt.Fprintf(&b, "Delivered: %d records in %d batches (%d failed requests)\n", r.Delivered, r.Batches, r.Failures)
	fmt.Fprintf(&b, "Dropped:   %d\n", r.Dropped)
	fmt.Fprintf(&b, "Pending:   %d", r.Pending)
	for _, rep := range r.Reports {
		fmt.Fprintf(&b, "\n  %s", rep)
	}
	return b.String()
}

// NewCaptureCommand creates the capture command.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CaptureOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capture <events-file>",
		Short: "Send events from a file through the pipeline",
		Long: `Read a YAML or JSON list of events and send them through the full
capture pipeline: session id, user identity, optional team metadata, then
delivery to the configured collector.

In periodic mode the events are delivered by the final flush on exit; in
instant mode each event is sent as it is captured.

Events file:
  - action: click
    subject: button
    pluginId: catalog
    routeRef: root
    extension: App
    value: 1
    attributes: { to: /catalog }

Exit codes:
  0 - Every captured record was delivered
  1 - Records were dropped or left undelivered, or the config is invalid
  2 - Command error (missing files, etc.)

Examples:
  pulse capture events.yaml --config app-config.yaml --user user:default/guest
  pulse capture events.json --config app-config.cue --session-db session.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "app-config file (YAML, JSON, or CUE)")
	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "user entity reference to attribute events to")
	cmd.Flags().StringVar(&opts.SessionDB, "session-db", "", "SQLite file holding the session id (in-memory if empty)")
	cmd.Flags().StringVar(&opts.DirectoryPath, "directory", "", "YAML file mapping user references to team entities")
	cmd.Flags().BoolVar(&opts.NoEnv, "no-env", false, "ignore PULSE_ANALYTICS_* environment overrides")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "time allowed for the final flush")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runCapture(opts *CaptureOptions, eventsPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	values, settings, err := loadSettings(opts.ConfigPath, !opts.NoEnv)
	if err != nil {
		return configFailure(f, err)
	}
	f.VerboseLog("Delivering to %s", settings.Host)

	events, err := loadEvents(eventsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "events file not found", err)
		}
		return f.Fail(ExitCommandError, ErrCodeEventsInvalid, "invalid events file", err)
	}

	trackerOpts := analytics.Options{
		Config: values,
		Logger: opts.Logger(cmd.ErrOrStderr()),
	}
	if opts.User != "" {
		trackerOpts.Identity = identity.Static{UserEntityRef: opts.User, OwnershipEntityRefs: []string{opts.User}}
	} else {
		f.VerboseLog("No --user given; every event will be skipped")
	}

	if opts.SessionDB != "" {
		slot, err := session.OpenSQLiteSlot(opts.SessionDB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeSession, "failed to open session slot", err)
		}
		defer slot.Close()
		trackerOpts.Slot = slot
	}

	if opts.DirectoryPath != "" {
		dir, err := identity.LoadFileDirectory(opts.DirectoryPath)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to load directory", err)
		}
		trackerOpts.Directory = dir
	}

	var (
		mu      sync.Mutex
		reports []string
	)
	trackerOpts.ErrorSink = debuglog.SinkFunc(func(err error) {
		mu.Lock()
		reports = append(reports, err.Error())
		mu.Unlock()
		f.VerboseLog("%v", err)
	})

	tracker, err := analytics.New(trackerOpts)
	if err != nil {
		return configFailure(f, err)
	}

	for _, ev := range events {
		tracker.CaptureEvent(ctx, ev)
	}

	closeCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := tracker.Close(closeCtx); err != nil {
		f.VerboseLog("Final flush incomplete: %v", err)
	}

	st := tracker.Stats()
	mu.Lock()
	result := CaptureResult{
		Mode:      tracker.Mode().String(),
		SessionID: tracker.SessionID(),
		Read:      len(events),
		Captured:  st.Captured,
		Skipped:   st.Skipped,
		Delivered: st.Records,
		Batches:   st.Batches,
		Failures:  st.Failures,
		Dropped:   st.Dropped,
		Pending:   st.Buffered,
		Reports:   reports,
	}
	mu.Unlock()

	if result.Dropped > 0 || result.Pending > 0 {
		msg := fmt.Sprintf("%d records dropped, %d undelivered", result.Dropped, result.Pending)
		if err := f.Error(ErrCodeUndelivered, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(result)
}

// loadEvents reads a YAML (or JSON) list of events.
func loadEvents(path string) ([]event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	var steps []harness.CaptureStep
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	events := make([]event.Event, 0, len(steps))
	for i := range steps {
		ev := steps[i].Event()
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
