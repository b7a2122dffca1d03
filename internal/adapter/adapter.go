package adapter

import (
	"context"
	"fmt"
	"time"

	"patchbay/internal/domain"
)

// Registry is the port registry patchbay reconciles against.
// Implementations wrap a sequencer-style fabric where ports come and go at runtime.
type Registry interface {
	// Owners enumerates every visible owner together with its ports
	Owners(ctx context.Context) ([]domain.Owner, error)

	// OwnerInfo returns the display name of an owner.
	// Returns ErrNotFound if the owner has vanished.
	OwnerInfo(id int) (string, error)

	// PortInfo returns the display name and capabilities of a port.
	// Returns ErrNotFound if the port has vanished.
	PortInfo(addr domain.Address) (domain.PortInfo, error)

	// Subscribe establishes a live link from sender to dest.
	// Refusals are reported as *SubscriptionError.
	Subscribe(sender, dest domain.Address) error

	// Poll blocks until at least one event is pending or timeout elapses and
	// returns every pending event in delivery order. A timeout yields no events
	// and no error.
	Poll(ctx context.Context, timeout time.Duration) ([]Event, error)

	// Close releases the registry connection
	Close() error
}

// EventKind identifies a topology change
type EventKind int

const (
	// EventOther covers announcements patchbay does not act on (client start, port exit, ...)
	EventOther EventKind = iota
	// EventPortStart announces a new port
	EventPortStart
	// EventPortSubscribed announces a link made by any actor
	EventPortSubscribed
	// EventPortUnsubscribed announces a link removed by any actor
	EventPortUnsubscribed
)

func (k EventKind) String() string {
	switch k {
	case EventPortStart:
		return "port_start"
	case EventPortSubscribed:
		return "port_subscribed"
	case EventPortUnsubscribed:
		return "port_unsubscribed"
	default:
		return "other"
	}
}

// Event is a single announcement from the registry
type Event struct {
	Kind EventKind
	// Port is set for EventPortStart
	Port domain.Address
	// Sender and Dest are set for subscription events
	Sender domain.Address
	Dest   domain.Address
	// Detail describes EventOther announcements for logging
	Detail string
}

// PortStart creates a port-start event
func PortStart(addr domain.Address) Event {
	return Event{Kind: EventPortStart, Port: addr}
}

// Subscribed creates a port-subscribed event
func Subscribed(sender, dest domain.Address) Event {
	return Event{Kind: EventPortSubscribed, Sender: sender, Dest: dest}
}

// Unsubscribed creates a port-unsubscribed event
func Unsubscribed(sender, dest domain.Address) Event {
	return Event{Kind: EventPortUnsubscribed, Sender: sender, Dest: dest}
}

// Other creates an event the engine ignores
func Other(detail string) Event {
	return Event{Kind: EventOther, Detail: detail}
}

func (e Event) String() string {
	switch e.Kind {
	case EventPortStart:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Port)
	case EventPortSubscribed, EventPortUnsubscribed:
		return fmt.Sprintf("%s(%s -> %s)", e.Kind, e.Sender, e.Dest)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("%s(%s)", e.Kind, e.Detail)
		}
		return e.Kind.String()
	}
}
