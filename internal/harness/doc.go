// Package harness runs scripted end-to-end scenarios against a real
// analytics.Tracker.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: ten_minute_interval
//	description: "One capture, delivered at the first tick"
//	user: user:default/test-user
//	config:
//	  interval: 10
//	responses: [500]
//	steps:
//	  - capture: { action: click, subject: button }
//	  - advance: 9m59s
//	  - advance: 1s
//	  - await: 1
//	assertions:
//	  - type: request_count
//	    count: 1
//	  - type: batch_sizes
//	    sizes: [1]
//
// config keys are relative to app.analytics.generic; host always points at
// the in-process collector. An empty user makes the identity provider fail.
//
// # Steps
//
//   - capture: submit one event
//   - advance: move the fake clock (Go duration syntax)
//   - session: signed_in or signed_out
//   - flush: drain the buffer synchronously
//   - await: wait until at least N requests arrived and were processed
//
// # Assertion Types
//
//   - request_count: exact number of requests the collector received
//   - batch_sizes: records per request, in arrival order
//   - report_count: unconditional error reports posted to the sink
//   - authorization: Authorization header of every request
//   - session_ids: distinct session ids on the wire, in first-seen order
//   - team_metadata: whether records carry team metadata
//
// # Deterministic Testing
//
// Every run starts from a fresh in-memory slot, a fake clock frozen at
// Epoch, and sequential session ids, so the wire traffic of a scenario is
// byte-for-byte reproducible and can be compared against golden files.
package harness
