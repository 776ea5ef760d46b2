package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/session"
)

// SessionResult is the output of the session commands.
type SessionResult struct {
	SessionID string `json:"sessionId,omitempty"`
	Present   bool   `json:"present"`
}

func (r SessionResult) String() string {
	if !r.Present {
		return "No session"
	}
	return r.SessionID
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or change the persisted session id",
		Long: `Operate on the session id stored in a SQLite slot, the same slot
"pulse capture --session-db" uses.

Examples:
  pulse session show --db session.db
  pulse session rotate --db session.db
  pulse session clear --db session.db`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file holding the session id")
	_ = cmd.MarkPersistentFlagRequired("db")

	run := func(op func(context.Context, *session.Store) (SessionResult, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			slot, err := session.OpenSQLiteSlot(dbPath)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeSession, "failed to open session slot", err)
			}
			defer slot.Close()

			logger := rootOpts.Logger(cmd.ErrOrStderr())
			log := debuglog.New(rootOpts.Verbose, debuglog.SlogSink{Logger: logger}, logger)
			store := session.NewStore(slot, session.WithLogger(log))

			result, err := op(ctx, store)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeSession, "session update failed", err)
			}
			return f.Success(result)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the stored session id",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run(func(ctx context.Context, s *session.Store) (SessionResult, error) {
			id, ok := s.ReadID(ctx)
			return SessionResult{SessionID: id, Present: ok && id != ""}, nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "rotate",
		Short:         "Replace the session id, as a sign-in does",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run(func(ctx context.Context, s *session.Store) (SessionResult, error) {
			id, err := s.Rotate(ctx)
			if err != nil {
				return SessionResult{}, err
			}
			return SessionResult{SessionID: id, Present: true}, nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Remove the session id, as a sign-out does",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: run(func(ctx context.Context, s *session.Store) (SessionResult, error) {
			if err := s.Clear(ctx); err != nil {
				return SessionResult{}, fmt.Errorf("clear: %w", err)
			}
			return SessionResult{}, nil
		}),
	})

	return cmd
}
