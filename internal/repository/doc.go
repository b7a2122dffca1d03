// Package repository defines the durable connection store for patchbay.
//
// The Store interface persists exactly one thing: the set of desired
// (sender name, dest name) connections. Both backends hold the set in its
// normal form, sorted lexically and free of duplicates, and rewrite it in
// full on every save.
//
// # JSON file
//
// The jsonfile subpackage is the default backend. It writes a pretty-printed
// JSON array of {"sender", "dest"} records under the user's config directory,
// replacing the file atomically via a temp file and rename. A missing file
// is the first-run state and loads as an empty set.
//
// # SQLite
//
// The sqlite subpackage keeps the same set in a single table with a
// composite primary key, replaced inside one transaction per save.
package repository
