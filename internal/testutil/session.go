package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator issues predictable session ids: prefix followed by a
// zero-padded counter, e.g. "session0000000001". Unlike
// session.FixedGenerator it never runs out, so scenarios may rotate the
// session any number of times.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. If prefix is empty,
// "session" is used. The prefix must itself be lowercase alphanumeric
// for the ids to be valid.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate implements session.Generator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%010d", g.prefix, g.n)
}
