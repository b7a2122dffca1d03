package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is the transient identifier the registry assigns to a port.
// It is only valid for the lifetime of the owning client and must never be persisted.
type Address struct {
	Owner int
	Port  int
}

// String renders the address in "owner:port" form
func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Owner, a.Port)
}

// Name is the stable, display-name based identity of a port.
// It is the only identity written to durable storage.
type Name string

// NewName composes "<owner-display-name>:<port-display-name>"
func NewName(owner, port string) Name {
	return Name(owner + ":" + port)
}

// FallbackName is used when owner or port metadata cannot be looked up
func FallbackName(a Address) Name {
	return Name(a.String())
}

// Owner returns the owner part of the name (everything before the last ':')
func (n Name) Owner() string {
	s := string(n)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// PortInfo describes a port as reported by the registry
type PortInfo struct {
	Address Address
	Name    string
	Caps    Capability
}

// Owner is a registered client together with the ports it exposes
type Owner struct {
	ID    int
	Name  string
	Ports []PortInfo
}

// ParseAddress parses the "owner:port" form produced by Address.String
func ParseAddress(s string) (Address, error) {
	var a Address
	ownerStr, portStr, ok := strings.Cut(s, ":")
	if !ok {
		return a, fmt.Errorf("invalid address %q: expected owner:port", s)
	}
	owner, err := strconv.Atoi(strings.TrimSpace(ownerStr))
	if err != nil {
		return a, fmt.Errorf("invalid owner in address %q: %w", s, err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return a, fmt.Errorf("invalid port in address %q: %w", s, err)
	}
	return Address{Owner: owner, Port: port}, nil
}
