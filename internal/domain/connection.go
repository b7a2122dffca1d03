package domain

import (
	"cmp"
	"slices"
)

// Connection is a persisted, directional link between two named ports
type Connection struct {
	Sender Name `json:"sender" yaml:"sender"`
	Dest   Name `json:"dest" yaml:"dest"`
}

// NewConnection creates a connection from sender to dest
func NewConnection(sender, dest Name) Connection {
	return Connection{Sender: sender, Dest: dest}
}

// Compare orders connections lexically by sender, then dest
func (c Connection) Compare(o Connection) int {
	if r := cmp.Compare(c.Sender, o.Sender); r != 0 {
		return r
	}
	return cmp.Compare(c.Dest, o.Dest)
}

// Involves checks if this connection mentions the given name on either end
func (c Connection) Involves(name Name) bool {
	return c.Sender == name || c.Dest == name
}

func (c Connection) String() string {
	return string(c.Sender) + " -> " + string(c.Dest)
}

// Normalize sorts connections and drops duplicates. The input slice is not modified.
func Normalize(conns []Connection) []Connection {
	out := slices.Clone(conns)
	slices.SortFunc(out, Connection.Compare)
	out = slices.Compact(out)
	if out == nil {
		out = []Connection{}
	}
	return out
}

// ConnectionSet is an ordered, duplicate-free collection of connections.
// It is not safe for concurrent use; the reconciliation engine is its only writer.
type ConnectionSet struct {
	conns []Connection
}

// NewConnectionSet creates a normalized set from the given connections
func NewConnectionSet(conns ...Connection) *ConnectionSet {
	return &ConnectionSet{conns: Normalize(conns)}
}

// Len returns the number of connections in the set
func (s *ConnectionSet) Len() int {
	return len(s.conns)
}

// Connections returns a copy of the connections in order
func (s *ConnectionSet) Connections() []Connection {
	return slices.Clone(s.conns)
}

// Contains reports whether the pair is present
func (s *ConnectionSet) Contains(c Connection) bool {
	_, found := slices.BinarySearchFunc(s.conns, c, Connection.Compare)
	return found
}

// Add inserts c at its sorted position. Returns false if it was already present.
func (s *ConnectionSet) Add(c Connection) bool {
	i, found := slices.BinarySearchFunc(s.conns, c, Connection.Compare)
	if found {
		return false
	}
	s.conns = slices.Insert(s.conns, i, c)
	return true
}

// Remove deletes c. Returns false if it was not present.
func (s *ConnectionSet) Remove(c Connection) bool {
	i, found := slices.BinarySearchFunc(s.conns, c, Connection.Compare)
	if !found {
		return false
	}
	s.conns = slices.Delete(s.conns, i, i+1)
	return true
}

// Involving returns every connection with name as sender or dest
func (s *ConnectionSet) Involving(name Name) []Connection {
	var out []Connection
	for _, c := range s.conns {
		if c.Involves(name) {
			out = append(out, c)
		}
	}
	return out
}

// Missing returns the connections in s that are not in other
func (s *ConnectionSet) Missing(other *ConnectionSet) []Connection {
	var out []Connection
	for _, c := range s.conns {
		if other == nil || !other.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether both sets hold the same pairs
func (s *ConnectionSet) Equal(other *ConnectionSet) bool {
	if other == nil {
		return s.Len() == 0
	}
	return slices.Equal(s.conns, other.conns)
}
