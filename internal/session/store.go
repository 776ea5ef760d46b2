package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/engine"
)

// Key is the slot entry name holding the session id.
const Key = "sessionId"

// DefaultPath scopes the entry to the whole application.
const DefaultPath = "/"

// Store issues, persists, reads, and clears the session id.
// Thread-safe: all methods may be called concurrently.
type Store struct {
	slot Slot
	gen  Generator
	log  *debuglog.Logger
	path string

	mu      sync.Mutex
	current string
}

// Option configures a Store.
type Option func(*Store)

// WithGenerator overrides the id generator (default UUIDv7Generator).
func WithGenerator(g Generator) Option {
	return func(s *Store) { s.gen = g }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *debuglog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a Store over slot.
func NewStore(slot Slot, opts ...Option) *Store {
	s := &Store{
		slot: slot,
		gen:  UUIDv7Generator{},
		path: DefaultPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = debuglog.New(false, nil, nil)
	}
	return s
}

// ReadID returns the session id currently stored in the slot.
//
// ok is false when no entry exists, when the slot cannot be read, or when
// the stored value is not valid percent-encoding. ReadID never fails.
func (s *Store) ReadID(ctx context.Context) (id string, ok bool) {
	raw, err := s.slot.Read(ctx)
	if err != nil {
		s.log.Log(fmt.Sprintf("Failed to read session slot: %v", err), true)
		return "", false
	}
	id, found, err := decodeEntry(raw, Key)
	if err != nil {
		s.log.Log(engine.NewSessionError(err).Error(), false)
		return "", false
	}
	return id, found
}

// EnsureID returns the stored session id, generating and persisting a new
// one when none is stored. An empty stored value counts as absent.
func (s *Store) EnsureID(ctx context.Context) (string, error) {
	if id, ok := s.ReadID(ctx); ok && id != "" {
		s.setCurrent(id)
		return id, nil
	}
	return s.Rotate(ctx)
}

// GenerateID returns a fresh id without persisting it.
func (s *Store) GenerateID() string {
	return s.gen.Generate()
}

// Clear removes the persisted id by writing an already-expired entry.
func (s *Store) Clear(ctx context.Context) error {
	err := s.slot.Write(ctx, Entry{
		Name:    Key,
		Value:   "",
		Path:    s.path,
		Expires: time.Unix(0, 0).UTC(),
	})
	if err != nil {
		return fmt.Errorf("clear session id: %w", err)
	}
	s.setCurrent("")
	return nil
}

// Current returns the id most recently read, generated, or cleared by this
// Store, without touching the slot.
func (s *Store) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnStateChange applies a session transition. SignedIn always rotates the
// id, even when one is already stored. SignedOut clears it. Failures are
// logged, not returned, because transitions arrive from the host's
// notifier with nobody to hand an error to.
func (s *Store) OnStateChange(ctx context.Context, state State) {
	switch state {
	case SignedIn:
		if _, err := s.Rotate(ctx); err != nil {
			s.log.Log(fmt.Sprintf("Failed to rotate session on sign-in: %v", err), true)
		}
	case SignedOut:
		if err := s.Clear(ctx); err != nil {
			s.log.Log(fmt.Sprintf("Failed to clear session on sign-out: %v", err), true)
		}
	default:
		s.log.Log(fmt.Sprintf("Ignoring unknown session state %q", state), false)
	}
}

// Subscribe attaches the Store to a notifier. It never fails: a nil
// notifier, a Subscribe error, or a panic inside Subscribe all leave the
// Store usable and return a no-op cancel function.
func (s *Store) Subscribe(n Notifier) (cancel func()) {
	cancel = func() {}
	if n == nil {
		return cancel
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Log(fmt.Sprintf("Session subscription panicked: %v", r), true)
			cancel = func() {}
		}
	}()

	c, err := n.Subscribe(func(state State) {
		s.OnStateChange(context.Background(), state)
	})
	if err != nil {
		s.log.Log(fmt.Sprintf("Failed to subscribe to session state: %v", err), true)
		return cancel
	}
	if c != nil {
		cancel = c
	}
	return cancel
}

// Rotate generates and persists a fresh id, replacing any stored one.
func (s *Store) Rotate(ctx context.Context) (string, error) {
	id := s.gen.Generate()
	err := s.slot.Write(ctx, Entry{
		Name:  Key,
		Value: url.PathEscape(id),
		Path:  s.path,
	})
	if err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	s.setCurrent(id)
	return id, nil
}

func (s *Store) setCurrent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
}
