package domain

import "strings"

// Capability is the set of flags a registry advertises for a port
type Capability uint8

const (
	// CapRead means the port can be subscribed as a source (sender)
	CapRead Capability = 1 << iota
	// CapWrite means the port can be subscribed as a destination
	CapWrite
	// CapNoExport excludes the port from reconciliation and persistence
	CapNoExport
)

// Has reports whether every flag in f is set
func (c Capability) Has(f Capability) bool {
	return c&f == f
}

// Exportable reports whether the port may appear in the index or the store
func (c Capability) Exportable() bool {
	return !c.Has(CapNoExport)
}

// CanSend reports whether the port is an exportable source
func (c Capability) CanSend() bool {
	return c.Has(CapRead) && c.Exportable()
}

// CanReceive reports whether the port is an exportable destination
func (c Capability) CanReceive() bool {
	return c.Has(CapWrite) && c.Exportable()
}

// String renders the flags as a "|" separated list, "none" when empty
func (c Capability) String() string {
	var parts []string
	if c.Has(CapRead) {
		parts = append(parts, "read")
	}
	if c.Has(CapWrite) {
		parts = append(parts, "write")
	}
	if c.Has(CapNoExport) {
		parts = append(parts, "no-export")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseCapability parses flag names as produced by String.
// Unknown names are ignored; "r", "w" and "x" are accepted as shorthands.
func ParseCapability(s string) Capability {
	var c Capability
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		switch strings.ToLower(part) {
		case "read", "r":
			c |= CapRead
		case "write", "w":
			c |= CapWrite
		case "no-export", "noexport", "x":
			c |= CapNoExport
		}
	}
	return c
}
