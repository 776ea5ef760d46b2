package delivery

import "sync"

// MaxRetries is the number of re-delivery attempts a record gets before
// it is dropped.
const MaxRetries = 3

// RetryCounter tracks failed delivery attempts per record key.
//
// Keys are content-derived (see event.RecordKey), so two records that
// serialize identically share a counter. Records carry a capture
// timestamp, which makes such collisions rare in practice.
//
// Thread-safety: all methods may be called concurrently.
type RetryCounter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewRetryCounter creates a counter with the given ceiling.
// A limit <= 0 uses MaxRetries.
func NewRetryCounter(limit int) *RetryCounter {
	if limit <= 0 {
		limit = MaxRetries
	}
	return &RetryCounter{limit: limit, counts: make(map[string]int)}
}

// Fail records a failed attempt for key. If the record is still under the
// ceiling, the count is incremented and retry is true; attempt is the
// retry number just granted (1-based). Otherwise the entry is removed,
// retry is false and attempt is the number of retries already spent.
func (c *RetryCounter) Fail(key string) (attempt int, retry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.counts[key]
	if n < c.limit {
		c.counts[key] = n + 1
		return n + 1, true
	}
	delete(c.counts, key)
	return n, false
}

// Succeed forgets key after a successful delivery.
func (c *RetryCounter) Succeed(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
}

// Attempts returns the current retry count for key.
func (c *RetryCounter) Attempts(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Len returns the number of keys being tracked.
func (c *RetryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}
