package session

import (
	"fmt"
	"sync"
)

// State is an authentication transition reported by the host.
type State string

const (
	// SignedIn rotates the session id.
	SignedIn State = "SignedIn"
	// SignedOut clears the session id.
	SignedOut State = "SignedOut"
)

// Notifier is a subscribable stream of session state transitions.
type Notifier interface {
	Subscribe(fn func(State)) (cancel func(), err error)
}

// Broadcaster is an in-memory Notifier. Publish delivers synchronously to
// every subscriber in subscription order.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(State)
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(State))}
}

// Subscribe implements Notifier.
func (b *Broadcaster) Subscribe(fn func(State)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe: nil callback")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}, nil
}

// Publish sends state to all current subscribers.
func (b *Broadcaster) Publish(state State) {
	b.mu.Lock()
	fns := make([]func(State), 0, len(b.subs))
	// Map iteration order is random; deliver in subscription order.
	for i := 0; i < b.nextID; i++ {
		if fn, ok := b.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
