// Package adapter defines the port registry patchbay reconciles against.
//
// A registry is a sequencer-style fabric: owners (clients) come and go, each
// exposing ports with read, write and no-export capability flags, and every
// change is announced as an Event delivered through Poll.
//
// # Memory registry
//
// Memory is a complete in-process implementation. It backs the tests and the
// --topology simulator, and can be seeded from a YAML fixture with
// LoadTopologyFile and Apply. Seeding is silent; later changes through
// AddOwner, AddPort, RemovePort, Subscribe and Unsubscribe are announced the
// way a live registry would.
//
// # Errors
//
// Lookups of vanished owners and ports wrap ErrNotFound. Refused links are
// reported as *SubscriptionError, whose Err says why.
package adapter
