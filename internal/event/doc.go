// Package event defines the analytics event model shared by the capture
// pipeline.
//
// An Event is what the host application submits. A Record is an Event plus
// the context captured at submission time: timestamp, session id, resolved
// user reference, and optional team metadata. Records are the unit that is
// buffered, serialized onto the wire, and retried.
//
// # Wire Format
//
// A batch is a JSON array of records:
//
//	[{"event":{"action":"click","subject":"button","context":{...}},
//	  "timestamp":"2024-01-01T00:00:00Z","sessionId":"...","user":"user:default/alice"}]
//
// # Retry Identity
//
// RecordKey derives a stable identity from the canonical serialization of a
// record (sorted keys, NFC-normalized strings). Two structurally identical
// records share a key; the retry counter accepts this approximation.
package event
