package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/event"
)

// maxErrorBody bounds how much of a failed response is quoted in logs.
const maxErrorBody = 1 << 10

// Requeuer accepts records that should be retried on the next flush.
// *engine.Buffer satisfies it.
type Requeuer interface {
	Push(records ...event.Record)
}

// Stats counts delivery outcomes since the Sender was created.
type Stats struct {
	Batches  int64 // batches delivered successfully
	Failures int64 // batches that failed
	Records  int64 // records delivered successfully
	Retried  int64 // records pushed back for retry
	Dropped  int64 // records dropped after the retry ceiling
}

// Sender POSTs batches to the collector. It implements engine.Sender.
//
// Send never returns an error: failures are resolved through the retry
// policy and reported through the debug logger.
//
// Thread-safety: Send may be called concurrently; each call is a separate
// request.
type Sender struct {
	client   *http.Client
	endpoint string
	auth     Auth
	requeue  Requeuer
	retries  *RetryCounter
	log      *debuglog.Logger

	batches  atomic.Int64
	failures atomic.Int64
	records  atomic.Int64
	retried  atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient overrides the HTTP client (default http.DefaultClient,
// which imposes no timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// WithAuth sets the collector credentials.
func WithAuth(a Auth) Option {
	return func(s *Sender) { s.auth = a }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *debuglog.Logger) Option {
	return func(s *Sender) { s.log = l }
}

// NewSender creates a Sender posting to endpoint. Failed records are
// pushed back onto requeue.
func NewSender(endpoint string, requeue Requeuer, opts ...Option) *Sender {
	s := &Sender{
		client:   http.DefaultClient,
		endpoint: endpoint,
		requeue:  requeue,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retries = NewRetryCounter(MaxRetries)
	if s.log == nil {
		s.log = debuglog.New(false, nil, nil)
	}
	return s
}

// Send delivers batch as one request. An empty batch is logged and
// ignored.
func (s *Sender) Send(ctx context.Context, batch []event.Record) {
	if len(batch) == 0 {
		s.log.Log("No events to flush.", false)
		return
	}

	s.log.Log(fmt.Sprintf("Flushing %d events to endpoint: %s", len(batch), s.endpoint), false)

	if err := s.post(ctx, batch); err != nil {
		s.failures.Add(1)
		s.log.Log(fmt.Sprintf("Failed to flush analytics events: %v", err), true)
		s.retry(batch)
		return
	}

	s.batches.Add(1)
	s.records.Add(int64(len(batch)))
	for _, r := range batch {
		if key, err := event.RecordKey(r); err == nil {
			s.retries.Succeed(key)
		}
	}
	s.log.Log("Successfully flushed events.", false)
}

func (s *Sender) post(ctx context.Context, batch []event.Record) error {
	body, err := event.MarshalBatch(batch)
	if err != nil {
		return engine.NewDeliveryError(len(batch), 0, fmt.Errorf("marshal batch: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return engine.NewDeliveryError(len(batch), 0, fmt.Errorf("build request: %w", err))
	}
	s.auth.apply(req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return engine.NewDeliveryError(len(batch), 0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return engine.NewDeliveryError(len(batch), resp.StatusCode,
			fmt.Errorf("server responded with non-OK status: %s", msg))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// retry applies the per-record policy to every record of a failed batch.
func (s *Sender) retry(batch []event.Record) {
	for _, r := range batch {
		key, err := event.RecordKey(r)
		if err != nil {
			// A record that cannot be keyed cannot be serialized either,
			// so retrying it would fail forever.
			s.dropped.Add(1)
			s.log.Report(fmt.Errorf("%sdropping unserializable event: %w", debuglog.Prefix, err))
			continue
		}

		attempt, ok := s.retries.Fail(key)
		if !ok {
			s.dropped.Add(1)
			s.log.Report(fmt.Errorf("%s%w", debuglog.Prefix, engine.NewMaxRetriesError(r, key, attempt)))
			continue
		}

		s.requeue.Push(r)
		s.retried.Add(1)
		s.log.Log(fmt.Sprintf("Retrying event: %s, attempt %d", key, attempt), true)
	}
}

// Stats returns a snapshot of the delivery counters.
func (s *Sender) Stats() Stats {
	return Stats{
		Batches:  s.batches.Load(),
		Failures: s.failures.Load(),
		Records:  s.records.Load(),
		Retried:  s.retried.Load(),
		Dropped:  s.dropped.Load(),
	}
}
