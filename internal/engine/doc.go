// Package engine owns buffering and timing for the analytics pipeline.
//
// The engine sits between capture and delivery: captured records land in
// a Buffer, and a Scheduler decides when the buffer is drained and handed
// to a Sender.
//
// ARCHITECTURE:
//
// Two Delivery Modes:
// The mode is decided once, when the Scheduler is constructed, from the
// configured interval. It never changes afterwards.
//   - Periodic: a ticker fires every interval; a non-empty buffer is
//     drained and sent as one batch. An empty tick does nothing.
//   - Instant: there is no ticker. Each submitted record is sent at once
//     as a single-record batch.
//
// Record Flow:
// 1. Submit() pushes a record (periodic) or sends it (instant)
// 2. A tick drains the buffer atomically; concurrent pushes land wholly
//    before or after the drain
// 3. The drained batch is handed to the Sender on its own goroutine
// 4. The Sender re-pushes failed records until their retry ceiling
//
// Sends run concurrently with later ticks. A request that hangs never
// delays the next tick or a capture.
//
// The Buffer is unbounded. If the collector is unreachable for a long
// time, records accumulate in memory until their retries are exhausted.
package engine
