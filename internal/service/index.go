package service

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"patchbay/internal/adapter"
	"patchbay/internal/domain"
)

// Index maps stable port names to the address each was most recently seen at.
// Entries are inserted or overwritten, never deleted: an entry for a port that
// has gone away is harmless, since subscribing to it fails and the next
// PortStart for that name corrects it.
type Index struct {
	addrs map[domain.Name]domain.Address
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{addrs: make(map[domain.Name]domain.Address)}
}

// BuildIndex enumerates every owner and port in the registry and indexes each
// exportable port. When two ports resolve to the same name the later one wins.
func BuildIndex(ctx context.Context, reg adapter.Registry, logger *zap.Logger) (*Index, error) {
	owners, err := reg.Owners(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate owners: %w", err)
	}

	ix := NewIndex()
	for _, owner := range owners {
		for _, port := range owner.Ports {
			if !port.Caps.Exportable() {
				continue
			}
			name := Resolve(reg, port.Address)
			if prev, ok := ix.Lookup(name); ok && prev != port.Address {
				logger.Warn("Duplicate port name, keeping the later address",
					zap.String("name", string(name)),
					zap.Stringer("previous", prev),
					zap.Stringer("address", port.Address))
			}
			ix.Put(name, port.Address)
		}
	}

	logger.Debug("Built address index", zap.Int("ports", ix.Len()))
	return ix, nil
}

// Lookup returns the current address for name
func (ix *Index) Lookup(name domain.Name) (domain.Address, bool) {
	addr, ok := ix.addrs[name]
	return addr, ok
}

// Put records addr as the current address of name. Returns the address it
// replaced, if any.
func (ix *Index) Put(name domain.Name, addr domain.Address) (domain.Address, bool) {
	prev, ok := ix.addrs[name]
	ix.addrs[name] = addr
	return prev, ok
}

// Len returns the number of indexed names
func (ix *Index) Len() int {
	return len(ix.addrs)
}

// Names returns every indexed name in sorted order
func (ix *Index) Names() []domain.Name {
	return slices.Sorted(maps.Keys(ix.addrs))
}
