package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pulse/internal/collector"
)

// shutdownTimeout bounds graceful shutdown of the collector server.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve-collector command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Fail int // respond 500 to this many requests first
}

// NewServeCollectorCommand creates the serve-collector command.
func NewServeCollectorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve-collector",
		Short: "Run a local collector that logs every batch",
		Long: `Run a local HTTP collector for development. Every POSTed batch is
logged with its record count and Authorization scheme. Point
app.analytics.generic.host at the printed URL.

Use --fail to answer the first N requests with 500 and watch the retry
policy at work.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			ln, err := net.Listen("tcp", opts.Addr)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collector listening on http://%s\n", ln.Addr())

			// Batches are always logged at Info so the server is useful
			// without --verbose.
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			if opts.Verbose {
				logger = opts.Logger(cmd.ErrOrStderr())
			}
			coll := collector.New(logger)
			for i := 0; i < opts.Fail; i++ {
				coll.RespondWith(http.StatusInternalServerError)
			}

			if err := serveCollector(ctx, ln, coll); err != nil {
				return WrapExitError(ExitFailure, "collector stopped", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Received %d batches, %d records\n", coll.Count(), len(coll.Records()))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:7007", "listen address")
	cmd.Flags().IntVar(&opts.Fail, "fail", 0, "answer the first N requests with 500")

	return cmd
}

// serveCollector serves coll on ln until ctx is done, then shuts down
// gracefully.
func serveCollector(ctx context.Context, ln net.Listener, coll *collector.Collector) error {
	srv := &http.Server{
		Handler:           coll,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
