// Package session owns the analytics session identifier.
//
// The identifier lives in a durable key/value Slot that behaves like a
// browser cookie jar: Read returns every live entry as "name=value" pairs
// joined by "; ", and Write upserts a single entry, deleting it when its
// expiry is already in the past. Two implementations exist:
//
//   - MemorySlot: process-local, used by tests and embedded hosts
//   - SQLiteSlot: a SQLite file shared between processes, so a sign-in
//     performed by one process is observed by the next capture in another
//
// # Lifecycle
//
//   - First capture with no stored id: a fresh id is generated and persisted
//   - SignedIn transition: a fresh id is generated unconditionally (rotation)
//   - SignedOut transition: the entry is cleared with an expired write
//   - Every capture re-reads the slot so externally written ids are honored
//
// Malformed slot content (bad percent-encoding, stray delimiters) is treated
// as "no session" and never surfaces as an error.
package session
