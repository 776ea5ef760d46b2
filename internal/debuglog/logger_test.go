package debuglog

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog_ErrorInDebugModePostsPrefixedMessage(t *testing.T) {
	sink := &RecordingSink{}
	l := New(true, sink, quietLogger())

	l.Log("Test error message", true)

	errs := sink.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "Analytics: Test error message", errs[0].Error())
}

func TestLog_NonErrorInDebugModeIsNotPosted(t *testing.T) {
	sink := &RecordingSink{}
	l := New(true, sink, quietLogger())

	l.Log("Test info message", false)

	assert.Equal(t, 0, sink.Len())
}

func TestLog_DebugOffNeverPosts(t *testing.T) {
	sink := &RecordingSink{}
	l := New(false, sink, quietLogger())

	l.Log("Should not log this", false)
	l.Log("Should not log this error", true)

	assert.Equal(t, 0, sink.Len())
}

func TestReport_BypassesDebugGate(t *testing.T) {
	sink := &RecordingSink{}
	l := New(false, sink, quietLogger())

	l.Report(errors.New("max retries reached"))
	l.Report(nil)

	require.Equal(t, 1, sink.Len())
	assert.EqualError(t, sink.Errors()[0], "max retries reached")
}

func TestLog_MirrorsToSlog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := New(false, nil, log)

	l.Log("flushing", false, "count", 3)

	assert.Contains(t, buf.String(), "flushing")
	assert.Contains(t, buf.String(), "count=3")
}

func TestSlogSink_WritesPostedErrors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	l := New(true, SlogSink{Logger: log}, quietLogger())

	l.Log("slot unreadable", true)
	l.Report(errors.New("max retries reached"))

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `error="Analytics: slot unreadable"`)
	assert.Contains(t, out, `error="max retries reached"`)
}

func TestSlogSink_NilLoggerUsesDefault(t *testing.T) {
	assert.NotPanics(t, func() {
		SlogSink{}.Post(errors.New("boom"))
	})
}

func TestNilSinkIsTolerated(t *testing.T) {
	l := New(true, nil, quietLogger())
	assert.NotPanics(t, func() {
		l.Log("boom", true)
		l.Report(errors.New("boom"))
	})
}

func TestPanickingSinkIsContained(t *testing.T) {
	l := New(true, SinkFunc(func(error) { panic("sink exploded") }), quietLogger())
	assert.NotPanics(t, func() {
		l.Report(errors.New("boom"))
	})
}
