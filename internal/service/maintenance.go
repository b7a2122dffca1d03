package service

import (
	"context"
	"fmt"

	"patchbay/internal/domain"
	"patchbay/internal/repository"
)

// These operate on the store directly and are meant for when the daemon is
// stopped; a running daemon picks up file edits through its watcher.

// Forget removes c from the store. Reports whether it was present.
func Forget(ctx context.Context, store repository.Store, c domain.Connection) (bool, error) {
	set, err := store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load connections: %w", err)
	}
	if !set.Remove(c) {
		return false, nil
	}
	if err := store.Save(ctx, set); err != nil {
		return false, fmt.Errorf("save connections: %w", err)
	}
	return true, nil
}

// Import merges conns into the store, or replaces its contents when replace
// is set. Returns how many pairs were not stored before.
func Import(ctx context.Context, store repository.Store, conns []domain.Connection, replace bool) (int, error) {
	set, err := store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load connections: %w", err)
	}

	incoming := domain.NewConnectionSet(conns...)
	added := len(incoming.Missing(set))
	if replace {
		set = incoming
	} else {
		for _, c := range incoming.Connections() {
			set.Add(c)
		}
	}

	if err := store.Save(ctx, set); err != nil {
		return 0, fmt.Errorf("save connections: %w", err)
	}
	return added, nil
}
