package engine

import (
	"sync"

	"github.com/roach88/pulse/internal/event"
)

// Buffer is a thread-safe FIFO of records awaiting delivery.
//
// The buffer is unbounded: a capture never blocks or drops because the
// collector is slow. No deduplication or reordering is performed; a
// record pushed twice is delivered twice.
//
// Thread-safety: Push and DrainAll may be called from any goroutine.
// DrainAll swaps the backing slice under the lock, so a concurrent Push
// is observed either by this drain or by the next one, never lost.
type Buffer struct {
	mu      sync.Mutex
	records []event.Record
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{records: make([]event.Record, 0, 64)}
}

// Push appends records to the back of the buffer in argument order.
func (b *Buffer) Push(records ...event.Record) {
	if len(records) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = append(b.records, records...)
}

// DrainAll removes and returns every buffered record in push order.
// Returns nil when the buffer is empty.
func (b *Buffer) DrainAll() []event.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) == 0 {
		return nil
	}
	out := b.records
	b.records = make([]event.Record, 0, cap(out))
	return out
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
