// Package testutil provides deterministic collaborators for pipeline tests:
// a fake clock with manually advanced tickers, a predictable session id
// generator, and an in-process HTTP collector that records every batch.
package testutil
