package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/roach88/pulse/internal/collector"
)

// QuietLogger returns a slog.Logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewCollectorServer starts an in-process collector and returns it with
// its URL. The server is closed when the test ends.
func NewCollectorServer(t testing.TB) (*collector.Collector, string) {
	t.Helper()
	c := collector.New(QuietLogger())
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return c, srv.URL
}
