package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"patchbay/internal/adapter"
	"patchbay/internal/domain"
	"patchbay/internal/repository"
)

// EngineOptions tunes an Engine
type EngineOptions struct {
	// All connects every compatible source/destination pair across distinct
	// owners, at startup and whenever a port appears.
	All bool
	// Bus receives what the engine learns; nil disables publishing
	Bus *EventBus
}

// Engine owns the address index and the connection set and keeps both in step
// with the registry. Not safe for concurrent use; see the package docs.
type Engine struct {
	reg    adapter.Registry
	store  repository.Store
	logger *zap.Logger
	all    bool
	bus    *EventBus

	index *Index
	set   *domain.ConnectionSet
}

// NewEngine creates an engine. Call Start before handling events.
func NewEngine(reg adapter.Registry, store repository.Store, logger *zap.Logger, opts EngineOptions) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		reg:    reg,
		store:  store,
		logger: logger,
		all:    opts.All,
		bus:    opts.Bus,
		index:  NewIndex(),
		set:    domain.NewConnectionSet(),
	}
}

// Start builds the index, loads the store and makes a best-effort pass over
// every persisted connection. In all mode it then links every compatible pair.
func (e *Engine) Start(ctx context.Context) error {
	index, err := BuildIndex(ctx, e.reg, e.logger)
	if err != nil {
		return err
	}
	e.index = index

	set, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}
	e.set = set

	e.logger.Info("Reconciling persisted connections",
		zap.Int("connections", e.set.Len()),
		zap.Int("ports", e.index.Len()))
	e.AttemptAll()

	if e.all {
		if err := e.ConnectAll(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Connections returns the current connection set in order
func (e *Engine) Connections() []domain.Connection {
	return e.set.Connections()
}

// Index returns the address index
func (e *Engine) Index() *Index {
	return e.index
}

// Connect asks the registry to link sender to dest. Failures are logged and
// swallowed; the next relevant PortStart retries naturally. Reports whether
// the link was made.
func (e *Engine) Connect(sender, dest domain.Address) bool {
	return e.connect(sender, dest)
}

// connect is Connect with extra context attached to every log line.
func (e *Engine) connect(sender, dest domain.Address, extra ...zap.Field) bool {
	fields := append([]zap.Field{zap.Stringer("sender", sender), zap.Stringer("dest", dest)}, extra...)
	err := e.reg.Subscribe(sender, dest)
	switch {
	case err == nil:
		e.logger.Debug("Linked", fields...)
		return true
	case errors.Is(err, adapter.ErrAlreadySubscribed):
		e.logger.Debug("Already linked", fields...)
	default:
		e.logger.Error("Subscribe refused", append(fields, zap.Error(err))...)
	}
	return false
}

// AttemptConnection links c if both ends are currently indexed. A missing end
// is the normal state while endpoints come online, so it only logs at debug.
func (e *Engine) AttemptConnection(c domain.Connection) {
	sender, ok := e.index.Lookup(c.Sender)
	if !ok {
		e.logger.Debug("Deferring connection, sender not present",
			zap.String("sender", string(c.Sender)), zap.String("dest", string(c.Dest)))
		return
	}
	dest, ok := e.index.Lookup(c.Dest)
	if !ok {
		e.logger.Debug("Deferring connection, dest not present",
			zap.String("sender", string(c.Sender)), zap.String("dest", string(c.Dest)))
		return
	}
	if e.connect(sender, dest, zap.String("sender_name", string(c.Sender)), zap.String("dest_name", string(c.Dest))) {
		e.logger.Info("Restored connection", zap.String("sender", string(c.Sender)), zap.String("dest", string(c.Dest)))
		e.bus.Publish(Event{Type: EventLinked, Connection: c})
	}
}

// AttemptAll tries every persisted connection
func (e *Engine) AttemptAll() {
	for _, c := range e.set.Connections() {
		e.AttemptConnection(c)
	}
}

// AttemptForEndpoint tries only the persisted connections that mention name
func (e *Engine) AttemptForEndpoint(name domain.Name) {
	for _, c := range e.set.Involving(name) {
		e.AttemptConnection(c)
	}
}

// Handle dispatches one registry event. Only persistence failures are returned.
func (e *Engine) Handle(ctx context.Context, ev adapter.Event) error {
	switch ev.Kind {
	case adapter.EventPortStart:
		e.OnPortStart(ctx, ev.Port)
		return nil
	case adapter.EventPortSubscribed:
		return e.OnLearnedSubscribe(ctx, ev.Sender, ev.Dest)
	case adapter.EventPortUnsubscribed:
		return e.OnLearnedUnsubscribe(ctx, ev.Sender, ev.Dest)
	default:
		return nil
	}
}

// OnPortStart indexes a newly announced port and restores the persisted
// connections that mention it
func (e *Engine) OnPortStart(ctx context.Context, addr domain.Address) {
	info, err := e.reg.PortInfo(addr)
	if err != nil {
		e.logger.Debug("Port vanished before it could be indexed", zap.Stringer("address", addr), zap.Error(err))
		return
	}
	if !info.Caps.Exportable() {
		return
	}

	name := nameFor(e.reg, info)
	if prev, ok := e.index.Put(name, addr); ok && prev != addr {
		e.logger.Debug("Port moved", zap.String("name", string(name)),
			zap.Stringer("previous", prev), zap.Stringer("address", addr))
	}
	e.AttemptForEndpoint(name)

	if e.all {
		e.connectAllFor(ctx, info)
	}
}

// describe resolves an address for learning. A port that can no longer be
// looked up cannot be named reliably, so it is reported as an error.
func (e *Engine) describe(addr domain.Address) (domain.PortInfo, domain.Name, error) {
	info, err := e.reg.PortInfo(addr)
	if err != nil {
		return domain.PortInfo{}, "", err
	}
	return info, nameFor(e.reg, info), nil
}

// learnable resolves both ends of a link announcement. ok is false when the
// link must not be recorded.
func (e *Engine) learnable(sender, dest domain.Address) (domain.Connection, bool) {
	from, senderName, err := e.describe(sender)
	if err != nil {
		e.logger.Debug("Ignoring link with vanished sender",
			zap.Stringer("sender", sender), zap.Stringer("dest", dest), zap.Error(err))
		return domain.Connection{}, false
	}
	to, destName, err := e.describe(dest)
	if err != nil {
		e.logger.Debug("Ignoring link with vanished dest",
			zap.Stringer("sender", sender), zap.Stringer("dest", dest), zap.Error(err))
		return domain.Connection{}, false
	}
	if !from.Caps.Exportable() || !to.Caps.Exportable() {
		return domain.Connection{}, false
	}
	return domain.NewConnection(senderName, destName), true
}

// OnLearnedSubscribe records a link made by any actor, patchbay included
func (e *Engine) OnLearnedSubscribe(ctx context.Context, sender, dest domain.Address) error {
	c, ok := e.learnable(sender, dest)
	if !ok {
		return nil
	}
	if !e.set.Add(c) {
		return nil
	}

	e.logger.Info("Learned connection", zap.String("sender", string(c.Sender)), zap.String("dest", string(c.Dest)))
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.bus.Publish(Event{Type: EventConnectionLearned, Connection: c})
	return nil
}

// OnLearnedUnsubscribe drops a link removed by any actor so it is not
// reinstated on the next start. Links torn down because a port exited are
// announced after the port is gone; those are ignored and stay persisted.
func (e *Engine) OnLearnedUnsubscribe(ctx context.Context, sender, dest domain.Address) error {
	c, ok := e.learnable(sender, dest)
	if !ok {
		return nil
	}
	if !e.set.Remove(c) {
		return nil
	}

	e.logger.Info("Forgot connection", zap.String("sender", string(c.Sender)), zap.String("dest", string(c.Dest)))
	if err := e.persist(ctx); err != nil {
		return err
	}
	e.bus.Publish(Event{Type: EventConnectionForgotten, Connection: c})
	return nil
}

// ConnectAll links every exportable source to every exportable destination
// owned by a different client
func (e *Engine) ConnectAll(ctx context.Context) error {
	owners, err := e.reg.Owners(ctx)
	if err != nil {
		return fmt.Errorf("enumerate owners: %w", err)
	}

	var sources, dests []domain.PortInfo
	for _, o := range owners {
		for _, p := range o.Ports {
			if p.Caps.CanSend() {
				sources = append(sources, p)
			}
			if p.Caps.CanReceive() {
				dests = append(dests, p)
			}
		}
	}

	linked := 0
	for _, s := range sources {
		for _, d := range dests {
			if s.Address.Owner == d.Address.Owner {
				continue
			}
			if e.Connect(s.Address, d.Address) {
				linked++
			}
		}
	}
	e.logger.Info("Connected all compatible ports", zap.Int("linked", linked))
	return nil
}

// connectAllFor links a newly started port to every compatible counterpart
// on other owners
func (e *Engine) connectAllFor(ctx context.Context, port domain.PortInfo) {
	if !port.Caps.CanSend() && !port.Caps.CanReceive() {
		return
	}
	owners, err := e.reg.Owners(ctx)
	if err != nil {
		e.logger.Warn("Cannot enumerate owners for all mode", zap.Error(err))
		return
	}

	for _, o := range owners {
		if o.ID == port.Address.Owner {
			continue
		}
		for _, p := range o.Ports {
			if port.Caps.CanSend() && p.Caps.CanReceive() {
				e.Connect(port.Address, p.Address)
			}
			if port.Caps.CanReceive() && p.Caps.CanSend() {
				e.Connect(p.Address, port.Address)
			}
		}
	}
}

// Reload re-reads the store after it was edited outside patchbay and tries
// every connection that was not already known. Reading back our own write is
// a no-op.
func (e *Engine) Reload(ctx context.Context) error {
	set, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload connections: %w", err)
	}
	if set.Equal(e.set) {
		return nil
	}

	added := set.Missing(e.set)
	removed := e.set.Missing(set)
	e.set = set
	e.logger.Info("Store changed on disk",
		zap.Int("added", len(added)),
		zap.Int("removed", len(removed)),
		zap.Int("connections", set.Len()))

	for _, c := range added {
		e.AttemptConnection(c)
	}
	e.bus.Publish(Event{Type: EventStoreReloaded, Count: set.Len()})
	return nil
}

// persist writes the whole set. Failure leaves memory ahead of disk, so the
// caller must stop.
func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.Save(ctx, e.set); err != nil {
		e.logger.Error("Failed to persist connections", zap.Error(err))
		return fmt.Errorf("persist connections: %w", err)
	}
	return nil
}
