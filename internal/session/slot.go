package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is a single slot write. A zero Expires means the entry does not
// expire; an Expires at or before the slot's current time deletes it.
type Entry struct {
	Name    string
	Value   string
	Path    string
	Expires time.Time
}

// Expired reports whether the entry is already expired at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

// Slot is a durable client-side key/value capability.
//
// Read returns the raw content of the slot: every live entry rendered as
// "name=value" joined by "; ", in name order. Values are stored verbatim;
// encoding is the caller's concern.
type Slot interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, e Entry) error
}

// MemorySlot is an in-process Slot.
// Thread-safe: all methods may be called concurrently.
type MemorySlot struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemorySlot creates an empty MemorySlot using wall-clock time for expiry.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Read implements Slot.
func (s *MemorySlot) Read(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	names := make([]string, 0, len(s.entries))
	for name, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]string{name, s.entries[name].Value})
	}
	return formatEntries(pairs), nil
}

// Write implements Slot.
func (s *MemorySlot) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Expired(s.now()) {
		delete(s.entries, e.Name)
		return nil
	}
	if e.Path == "" {
		e.Path = "/"
	}
	s.entries[e.Name] = e
	return nil
}

// Lookup returns the stored entry for name, including its path and expiry.
func (s *MemorySlot) Lookup(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	return e, ok
}
