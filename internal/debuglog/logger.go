// Package debuglog routes the pipeline's internal diagnostics.
//
// Every message is mirrored to slog. Error-level messages are additionally
// posted to the host's ErrorSink, but only when debug mode is enabled.
// Report bypasses the debug gate for conditions the host must always
// observe, such as records dropped after the retry ceiling.
package debuglog

import (
	"errors"
	"log/slog"
	"sync"
)

// Prefix is prepended to every message posted to the error sink.
const Prefix = "Analytics: "

// ErrorSink accepts error values from the pipeline. Post is
// fire-and-forget; implementations must not block for long.
type ErrorSink interface {
	Post(err error)
}

// SinkFunc adapts a function to ErrorSink.
type SinkFunc func(err error)

// Post calls f(err).
func (f SinkFunc) Post(err error) { f(err) }

// Logger is the debug-gated diagnostic channel.
//
// A nil sink is allowed; posts are then dropped after being logged.
// Logger is safe for concurrent use.
type Logger struct {
	debug bool
	sink  ErrorSink
	log   *slog.Logger
}

// New creates a Logger. If log is nil, slog.Default() is used.
func New(debug bool, sink ErrorSink, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{debug: debug, sink: sink, log: log}
}

// Log records a diagnostic message. When isError is set and debug mode is
// enabled, the message is also posted to the error sink.
func (l *Logger) Log(msg string, isError bool, args ...any) {
	if !isError {
		l.log.Debug(msg, args...)
		return
	}
	l.log.Warn(msg, args...)
	if l.debug {
		l.post(errors.New(Prefix + msg))
	}
}

// Report posts err to the error sink regardless of debug mode.
func (l *Logger) Report(err error) {
	if err == nil {
		return
	}
	l.log.Error("analytics error reported", "error", err)
	l.post(err)
}

func (l *Logger) post(err error) {
	if l.sink == nil {
		return
	}
	// A misbehaving sink must not take the pipeline down with it.
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("error sink panicked", "panic", r)
		}
	}()
	l.sink.Post(err)
}

// SlogSink is an ErrorSink that writes posted errors to a slog.Logger.
// Used by the CLI where no richer error surface exists.
type SlogSink struct {
	Logger *slog.Logger
}

// Post logs err at error level.
func (s SlogSink) Post(err error) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Error("analytics", "error", err)
}

// RecordingSink collects posted errors in memory.
// Thread-safe: Post may be called from any goroutine.
type RecordingSink struct {
	mu   sync.Mutex
	errs []error
}

// Post records err.
func (s *RecordingSink) Post(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Errors returns a copy of the recorded errors in post order.
func (s *RecordingSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Len returns the number of recorded errors.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}
