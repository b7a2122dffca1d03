package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"patchbay/internal/adapter"
	"patchbay/internal/domain"
)

func TestEngine_PortStartRestoresPersistedConnectionOnce(t *testing.T) {
	ctx := context.Background()
	a, b := addr(20, 0), addr(30, 0)

	reg := &mockRegistry{}
	reg.On("Owners", mock.Anything).Return([]domain.Owner{
		{ID: 20, Name: "A", Ports: []domain.PortInfo{{Address: a, Name: "0", Caps: domain.CapRead}}},
		{ID: 30, Name: "B"},
	}, nil)
	reg.On("OwnerInfo", 20).Return("A", nil)
	reg.On("OwnerInfo", 30).Return("B", nil)
	reg.On("PortInfo", a).Return(domain.PortInfo{Address: a, Name: "0", Caps: domain.CapRead}, nil)
	reg.On("PortInfo", b).Return(domain.PortInfo{Address: b, Name: "0", Caps: domain.CapWrite}, nil)
	reg.On("Subscribe", a, b).Return(nil)

	store := newStore(t, conn("A:0", "B:0"))
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(ctx))
	reg.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)

	require.NoError(t, e.Handle(ctx, adapter.PortStart(b)))

	reg.AssertNumberOfCalls(t, "Subscribe", 1)
	reg.AssertCalled(t, "Subscribe", a, b)
	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
}

func TestEngine_PortStartWithMemoryRegistry(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, err := reg.AddPort(20, 0, "0", domain.CapRead)
	require.NoError(t, err)
	settle(t, reg)

	store := newStore(t, conn("A:0", "B:0"))
	before := readFile(t, store.Path())
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	b, err := reg.AddPort(30, 0, "0", domain.CapWrite)
	require.NoError(t, err)
	pump(t, e, reg)

	assert.True(t, reg.Linked(a, b))
	assert.Equal(t, 1, reg.SubscribeCount(a, b))
	assert.Equal(t, before, readFile(t, store.Path()), "the echo of our own link must not rewrite the store")
}

func TestEngine_AttemptConnectionAbsorbsRegistryErrors(t *testing.T) {
	a, b := addr(20, 0), addr(30, 0)

	refusals := []error{
		&adapter.SubscriptionError{Sender: a, Dest: b, Err: adapter.ErrIncompatible},
		&adapter.SubscriptionError{Sender: a, Dest: b, Err: adapter.ErrNotFound},
		&adapter.SubscriptionError{Sender: a, Dest: b, Err: adapter.ErrClosed},
		errors.New("sequencer went away"),
	}

	for _, refusal := range refusals {
		t.Run(refusal.Error(), func(t *testing.T) {
			reg := &mockRegistry{}
			reg.On("Subscribe", a, b).Return(refusal)
			logger, logs := observedLogger()

			e := NewEngine(reg, newStore(t), logger, EngineOptions{})
			e.Index().Put("A:0", a)
			e.Index().Put("B:0", b)

			assert.NotPanics(t, func() { e.AttemptConnection(conn("A:0", "B:0")) })
			reg.AssertNumberOfCalls(t, "Subscribe", 1)

			refused := logs.FilterMessage("Subscribe refused").All()
			require.Len(t, refused, 1)
			assert.Equal(t, zap.ErrorLevel, refused[0].Level)
			fields := refused[0].ContextMap()
			assert.Equal(t, "20:0", fields["sender"])
			assert.Equal(t, "30:0", fields["dest"])
			assert.Equal(t, "A:0", fields["sender_name"])
			assert.Equal(t, "B:0", fields["dest_name"])
		})
	}
}

func TestEngine_AttemptConnectionDefersMissingEndpoints(t *testing.T) {
	reg := &mockRegistry{}
	logger, logs := observedLogger()
	e := NewEngine(reg, newStore(t), logger, EngineOptions{})
	e.Index().Put("A:0", addr(20, 0))

	e.AttemptConnection(conn("A:0", "B:0"))
	e.AttemptConnection(conn("C:0", "A:0"))

	reg.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
	for _, entry := range logs.All() {
		assert.Equal(t, zap.DebugLevel, entry.Level, entry.Message)
	}
}

func TestEngine_AlreadyLinkedIsNotAnError(t *testing.T) {
	a, b := addr(20, 0), addr(30, 0)
	reg := &mockRegistry{}
	reg.On("Subscribe", a, b).Return(&adapter.SubscriptionError{Sender: a, Dest: b, Err: adapter.ErrAlreadySubscribed})
	logger, logs := observedLogger()

	e := NewEngine(reg, newStore(t), logger, EngineOptions{})
	e.Index().Put("A:0", a)
	e.Index().Put("B:0", b)
	e.AttemptConnection(conn("A:0", "B:0"))

	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestEngine_LearnedSubscribeRewritesStore(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t)
	bus := NewEventBus()
	events := make(chan Event, 4)
	bus.Subscribe(events)

	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{Bus: bus})
	require.NoError(t, e.Start(context.Background()))
	_, err := os.Stat(store.Path())
	require.True(t, os.IsNotExist(err), "nothing learned yet, nothing written")

	// Someone else patches A to B.
	require.NoError(t, reg.Subscribe(a, b))
	pump(t, e, reg)

	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
	assert.Equal(t, `[
  {
    "sender": "A:0",
    "dest": "B:0"
  }
]
`, readFile(t, store.Path()))

	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: EventConnectionLearned, Connection: conn("A:0", "B:0")}, <-events)
}

func TestEngine_SubscribeThenUnsubscribeLeavesStoreUnchanged(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t, conn("Drums:out", "Mixer:in"))
	before := readFile(t, store.Path())

	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, reg.Subscribe(a, b))
	require.NoError(t, reg.Unsubscribe(a, b))
	pump(t, e, reg)

	assert.Equal(t, before, readFile(t, store.Path()))
	assert.Equal(t, []domain.Connection{conn("Drums:out", "Mixer:in")}, e.Connections())
}

func TestEngine_LearnedUnsubscribeForgetsConnection(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t, conn("A:0", "B:0"))
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))
	pump(t, e, reg)
	require.True(t, reg.Linked(a, b))

	require.NoError(t, reg.Unsubscribe(a, b))
	pump(t, e, reg)

	assert.Empty(t, e.Connections())
	assert.Equal(t, "[]\n", readFile(t, store.Path()))
}

func TestEngine_UnsubscribeAfterPortExitKeepsConnection(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t, conn("A:0", "B:0"))
	before := readFile(t, store.Path())
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	// The synth is unplugged; the teardown is announced once the port is gone.
	reg.RemovePort(b)
	reg.Inject(adapter.Unsubscribed(a, b))
	pump(t, e, reg)

	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
	assert.Equal(t, before, readFile(t, store.Path()))
}

func TestEngine_AddressChangeReestablishesWithoutDuplicates(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t, conn("A:0", "B:0"))
	before := readFile(t, store.Path())
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))
	pump(t, e, reg)
	require.Equal(t, 1, reg.SubscribeCount(a, b))

	// B restarts and comes back under a new client id.
	reg.RemoveOwner(30)
	reg.AddOwner(31, "B")
	moved, err := reg.AddPort(31, 0, "0", domain.CapWrite)
	require.NoError(t, err)
	pump(t, e, reg)

	assert.True(t, reg.Linked(a, moved))
	assert.Equal(t, 1, reg.SubscribeCount(a, moved))
	got, ok := e.Index().Lookup("B:0")
	require.True(t, ok)
	assert.Equal(t, moved, got)
	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
	assert.Equal(t, before, readFile(t, store.Path()))
}

func TestEngine_NoExportPortsAreNeverIndexedOrPersisted(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	hidden, _ := reg.AddPort(20, 0, "0", domain.CapRead|domain.CapNoExport)
	visible, _ := reg.AddPort(20, 1, "1", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t)
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, []domain.Name{"A:1", "B:0"}, e.Index().Names())

	late, _ := reg.AddPort(30, 1, "1", domain.CapWrite|domain.CapNoExport)
	require.NoError(t, reg.Subscribe(hidden, b))
	require.NoError(t, reg.Subscribe(visible, late))
	pump(t, e, reg)

	assert.Equal(t, []domain.Name{"A:1", "B:0"}, e.Index().Names())
	assert.Empty(t, e.Connections())
	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_LearnedLinkWithVanishedPortIsIgnored(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	settle(t, reg)

	store := newStore(t)
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	reg.Inject(adapter.Subscribed(a, addr(99, 0)))
	pump(t, e, reg)

	assert.Empty(t, e.Connections())
}

func TestEngine_OwnerLookupFailureFallsBackToNumericName(t *testing.T) {
	a, b := addr(20, 0), addr(30, 0)
	reg := &mockRegistry{}
	reg.On("PortInfo", a).Return(domain.PortInfo{Address: a, Name: "out", Caps: domain.CapRead}, nil)
	reg.On("PortInfo", b).Return(domain.PortInfo{Address: b, Name: "in", Caps: domain.CapWrite}, nil)
	reg.On("OwnerInfo", 20).Return("", adapter.ErrNotFound)
	reg.On("OwnerInfo", 30).Return("Synth", nil)

	store := newStore(t)
	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.OnLearnedSubscribe(context.Background(), a, b))

	assert.Equal(t, []domain.Connection{conn("20:0", "Synth:in")}, e.Connections())
}

func TestEngine_PersistFailureIsReturned(t *testing.T) {
	a, b := addr(20, 0), addr(30, 0)
	reg := &mockRegistry{}
	reg.On("PortInfo", a).Return(domain.PortInfo{Address: a, Name: "0", Caps: domain.CapRead}, nil)
	reg.On("PortInfo", b).Return(domain.PortInfo{Address: b, Name: "0", Caps: domain.CapWrite}, nil)
	reg.On("OwnerInfo", 20).Return("A", nil)
	reg.On("OwnerInfo", 30).Return("B", nil)

	e := NewEngine(reg, failingStore{}, zaptest.NewLogger(t), EngineOptions{})
	err := e.Handle(context.Background(), adapter.Subscribed(a, b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEngine_AllModeSkipsSameOwner(t *testing.T) {
	s1, s2, d1 := addr(20, 0), addr(30, 0), addr(30, 1)

	reg := &mockRegistry{}
	reg.On("Owners", mock.Anything).Return([]domain.Owner{
		{ID: 20, Name: "Keyboard", Ports: []domain.PortInfo{
			{Address: s1, Name: "out", Caps: domain.CapRead},
		}},
		{ID: 30, Name: "Synth", Ports: []domain.PortInfo{
			{Address: s2, Name: "out", Caps: domain.CapRead},
			{Address: d1, Name: "in", Caps: domain.CapWrite},
		}},
	}, nil)
	reg.On("OwnerInfo", 20).Return("Keyboard", nil)
	reg.On("OwnerInfo", 30).Return("Synth", nil)
	reg.On("PortInfo", s1).Return(domain.PortInfo{Address: s1, Name: "out", Caps: domain.CapRead}, nil)
	reg.On("PortInfo", s2).Return(domain.PortInfo{Address: s2, Name: "out", Caps: domain.CapRead}, nil)
	reg.On("PortInfo", d1).Return(domain.PortInfo{Address: d1, Name: "in", Caps: domain.CapWrite}, nil)
	reg.On("Subscribe", s1, d1).Return(nil)

	e := NewEngine(reg, newStore(t), zaptest.NewLogger(t), EngineOptions{All: true})
	require.NoError(t, e.Start(context.Background()))

	reg.AssertNumberOfCalls(t, "Subscribe", 1)
	reg.AssertCalled(t, "Subscribe", s1, d1)
	reg.AssertNotCalled(t, "Subscribe", s2, d1)
}

func TestEngine_AllModeSkipsNoExport(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "Keyboard")
	reg.AddOwner(30, "Synth")
	out, _ := reg.AddPort(20, 0, "out", domain.CapRead)
	hidden, _ := reg.AddPort(20, 1, "hidden", domain.CapRead|domain.CapNoExport)
	in, _ := reg.AddPort(30, 0, "in", domain.CapWrite)
	settle(t, reg)

	e := NewEngine(reg, newStore(t), zaptest.NewLogger(t), EngineOptions{All: true})
	require.NoError(t, e.Start(context.Background()))

	assert.True(t, reg.Linked(out, in))
	assert.False(t, reg.Linked(hidden, in))
}

func TestEngine_AllModeLinksNewPorts(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "Keyboard")
	reg.AddOwner(30, "Synth")
	out, _ := reg.AddPort(20, 0, "out", domain.CapRead)
	settle(t, reg)

	e := NewEngine(reg, newStore(t), zaptest.NewLogger(t), EngineOptions{All: true})
	require.NoError(t, e.Start(context.Background()))

	in, _ := reg.AddPort(30, 0, "in", domain.CapWrite)
	loopback, _ := reg.AddPort(20, 1, "loopback", domain.CapWrite)
	pump(t, e, reg)

	assert.Equal(t, 1, reg.SubscribeCount(out, in))
	assert.False(t, reg.Linked(out, loopback))
	assert.Equal(t, []domain.Connection{conn("Keyboard:out", "Synth:in")}, e.Connections())
}

func TestEngine_ReloadAttemptsNewConnections(t *testing.T) {
	reg := newMemory(t)
	reg.AddOwner(20, "A")
	reg.AddOwner(30, "B")
	a, _ := reg.AddPort(20, 0, "0", domain.CapRead)
	b, _ := reg.AddPort(30, 0, "0", domain.CapWrite)
	settle(t, reg)

	store := newStore(t)
	bus := NewEventBus()
	events := make(chan Event, 4)
	bus.Subscribe(events)

	e := NewEngine(reg, store, zaptest.NewLogger(t), EngineOptions{Bus: bus})
	require.NoError(t, e.Start(context.Background()))

	// Hand edit of the file.
	require.NoError(t, os.WriteFile(store.Path(), []byte(`[{"sender":"A:0","dest":"B:0"}]`), 0o644))
	require.NoError(t, e.Reload(context.Background()))

	assert.True(t, reg.Linked(a, b))
	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
	assert.Len(t, events, 2)

	// Reading the same content back changes nothing.
	require.NoError(t, e.Reload(context.Background()))
	assert.Len(t, events, 2)
}

func TestEngine_ReloadRejectsCorruptFile(t *testing.T) {
	store := newStore(t, conn("A:0", "B:0"))
	e := NewEngine(newMemory(t), store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, os.WriteFile(store.Path(), []byte(`[{"sender":`), 0o644))
	require.Error(t, e.Reload(context.Background()))
	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
}

func TestEngine_ReloadRejectsIncompleteRecords(t *testing.T) {
	store := newStore(t, conn("A:0", "B:0"))
	e := NewEngine(newMemory(t), store, zaptest.NewLogger(t), EngineOptions{})
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, os.WriteFile(store.Path(), []byte(`[{"sender":"A:0"},{}]`), 0o644))
	require.Error(t, e.Reload(context.Background()))
	assert.Equal(t, []domain.Connection{conn("A:0", "B:0")}, e.Connections())
}

func TestEngine_OtherEventsAreIgnored(t *testing.T) {
	reg := &mockRegistry{}
	e := NewEngine(reg, failingStore{}, zaptest.NewLogger(t), EngineOptions{})

	require.NoError(t, e.Handle(context.Background(), adapter.Other("client_exit 20")))
	reg.AssertExpectations(t)
}
