// Package domain defines the core types of the patchbay connection keeper.
//
// The registry hands out two kinds of identity for a port, and this package
// keeps them apart as distinct types.
//
// # Addresses and Names
//
// Address is the (owner id, port id) pair the registry assigns at runtime.
// It changes whenever a device is replugged or a process restarts and is
// never written to disk.
//
// Name is "<owner display name>:<port display name>", stable across restarts.
// When metadata lookup fails the numeric "<owner>:<port>" form is used
// instead (see FallbackName). Names are the only identity that is persisted.
//
// # Connections
//
// Connection is a (sender Name, dest Name) pair. ConnectionSet keeps
// connections sorted lexically and free of duplicates, which is also the
// on-disk normal form.
//
// # Capabilities
//
// Capability carries the registry's per-port flags. Ports flagged
// CapNoExport are never indexed and never appear in a persisted connection.
package domain
