// Package service implements the connection reconciliation engine for patchbay.
//
// The engine bridges two identities for a port: the volatile Address the
// registry hands out for the lifetime of a client, and the stable Name built
// from display names. Only Names are persisted; Addresses are looked up in an
// Index that is built once at startup and then kept current from registry
// events.
//
// # Single mutator
//
// The Index and the connection set are owned by one Engine and touched only
// from the goroutine running Loop.Run. Registry events and store-file change
// notifications are both drained on that goroutine, so neither structure is
// locked. Callers must not invoke Engine methods concurrently with a running
// Loop.
//
// # Error policy
//
//   - endpoint not present yet: debug log, wait for its PortStart
//   - subscribe refused by the registry: error log, continue
//   - owner or port metadata vanished: numeric fallback name
//   - store write failed: returned to the caller, the daemon stops
//
// # Event System
//
// The Engine publishes what it learned and connected on an EventBus so other
// parts of the process can follow along without reaching into its state. The
// daemon tallies them into an Activity and reports it at shutdown.
package service
