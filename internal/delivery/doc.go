// Package delivery transmits batches of records to the collector and
// applies the per-record retry policy when a batch fails.
//
// A batch is a single HTTP POST whose body is a JSON array of records in
// buffer order. Any 2xx response is success. A non-2xx status, a transport
// error, or a serialization error fails the whole batch; each record in it
// is then retried independently, up to MaxRetries times, by pushing it back
// into the buffer for the next flush.
package delivery
