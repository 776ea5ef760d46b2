// Package collector is a minimal analytics collector: an HTTP handler
// that accepts batches in the wire format and keeps them in memory.
//
// It backs the serve-collector development command and the pipeline
// tests. It is not meant to store analytics data in production.
package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// maxBody bounds a single accepted batch.
const maxBody = 10 << 20

// Request is one batch received by the collector.
type Request struct {
	Method        string
	Path          string
	ContentType   string
	Authorization string
	Body          []byte
	Records       []json.RawMessage
	ReceivedAt    time.Time
}

// Collector is an http.Handler recording every POSTed batch.
//
// Responses are 200 unless statuses have been queued with RespondWith,
// in which case each request consumes the next queued status.
//
// Thread-safety: ServeHTTP and all accessors may be called concurrently.
type Collector struct {
	mu       sync.Mutex
	requests []Request
	statuses []int
	notify   chan struct{}
	log      *slog.Logger
}

// New creates an empty Collector. If log is nil, slog.Default() is used.
func New(log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{notify: make(chan struct{}, 1), log: log}
}

// RespondWith queues statuses for the next requests, in order. Once the
// queue is exhausted, requests get 200 again.
func (c *Collector) RespondWith(statuses ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, statuses...)
}

// ServeHTTP implements http.Handler.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
		return
	}

	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
		ReceivedAt:    time.Now(),
	}
	if err := json.Unmarshal(body, &req.Records); err != nil {
		c.log.Warn("collector received non-array body", "error", err)
	}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	status := http.StatusOK
	if len(c.statuses) > 0 {
		status = c.statuses[0]
		c.statuses = c.statuses[1:]
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}

	c.log.Info("batch received",
		"records", len(req.Records),
		"bytes", len(body),
		"status", status,
		"auth", authScheme(req.Authorization),
	)

	w.WriteHeader(status)
}

// authScheme returns the scheme of an Authorization header, or "none".
// Credentials are never logged.
func authScheme(header string) string {
	if header == "" {
		return "none"
	}
	scheme, _, _ := strings.Cut(header, " ")
	return scheme
}

// Requests returns a copy of every request received so far.
func (c *Collector) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Count returns the number of requests received.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Records returns every record received, across requests, in arrival
// order.
func (c *Collector) Records() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, r := range c.requests {
		out = append(out, r.Records...)
	}
	return out
}

// WaitFor blocks until at least n requests have been received or timeout
// elapses. Returns whether the count was reached.
func (c *Collector) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if c.Count() >= n {
			return true
		}
		select {
		case <-c.notify:
		case <-deadline.C:
			return c.Count() >= n
		}
	}
}
