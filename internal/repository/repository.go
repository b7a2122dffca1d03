package repository

import (
	"context"

	"patchbay/internal/domain"
)

// Store defines the durable record of desired connections
type Store interface {
	// Load returns the persisted set. A store that was never written yields an empty set.
	Load(ctx context.Context) (*domain.ConnectionSet, error)

	// Save replaces the persisted set with a sorted, deduplicated copy of set
	Save(ctx context.Context, set *domain.ConnectionSet) error

	// Close releases resources
	Close() error
}

// FileBacked is implemented by stores whose state lives in a single file that
// can be edited by hand and watched for changes
type FileBacked interface {
	Path() string
}
