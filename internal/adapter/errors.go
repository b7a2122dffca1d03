package adapter

import (
	"errors"
	"fmt"

	"patchbay/internal/domain"
)

var (
	// ErrNotFound is returned when an owner or port has vanished
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned by operations on a closed registry
	ErrClosed = errors.New("registry closed")
	// ErrAlreadySubscribed is the reason for refusing a duplicate link
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrIncompatible is the reason for refusing a link between ports lacking the needed capabilities
	ErrIncompatible = errors.New("incompatible ports")
)

// SubscriptionError reports a refused Subscribe call
type SubscriptionError struct {
	Sender domain.Address
	Dest   domain.Address
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s -> %s: %v", e.Sender, e.Dest, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
