package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"patchbay/internal/adapter"
	"patchbay/internal/domain"
	"patchbay/internal/repository/jsonfile"
)

// mockRegistry is a scripted adapter.Registry
type mockRegistry struct {
	mock.Mock
}

var _ adapter.Registry = (*mockRegistry)(nil)

func (m *mockRegistry) Owners(ctx context.Context) ([]domain.Owner, error) {
	args := m.Called(ctx)
	owners, _ := args.Get(0).([]domain.Owner)
	return owners, args.Error(1)
}

func (m *mockRegistry) OwnerInfo(id int) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func (m *mockRegistry) PortInfo(addr domain.Address) (domain.PortInfo, error) {
	args := m.Called(addr)
	info, _ := args.Get(0).(domain.PortInfo)
	return info, args.Error(1)
}

func (m *mockRegistry) Subscribe(sender, dest domain.Address) error {
	return m.Called(sender, dest).Error(0)
}

func (m *mockRegistry) Poll(ctx context.Context, timeout time.Duration) ([]adapter.Event, error) {
	args := m.Called(ctx, timeout)
	events, _ := args.Get(0).([]adapter.Event)
	return events, args.Error(1)
}

func (m *mockRegistry) Close() error {
	return m.Called().Error(0)
}

// failingStore loads an empty set and refuses every write
type failingStore struct{}

func (failingStore) Load(context.Context) (*domain.ConnectionSet, error) {
	return domain.NewConnectionSet(), nil
}

func (failingStore) Save(context.Context, *domain.ConnectionSet) error {
	return errors.New("disk full")
}

func (failingStore) Close() error { return nil }

func conn(sender, dest string) domain.Connection {
	return domain.NewConnection(domain.Name(sender), domain.Name(dest))
}

func addr(owner, port int) domain.Address {
	return domain.Address{Owner: owner, Port: port}
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// newStore returns a file store in a fresh directory, pre-populated when
// conns are given
func newStore(t *testing.T, conns ...domain.Connection) *jsonfile.Store {
	t.Helper()
	store := jsonfile.New(filepath.Join(t.TempDir(), "connections.json"))
	if len(conns) > 0 {
		require.NoError(t, store.Save(context.Background(), domain.NewConnectionSet(conns...)))
	}
	return store
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newMemory returns a registry with no patchbay client of its own
func newMemory(t *testing.T) *adapter.Memory {
	t.Helper()
	reg := adapter.NewMemory("")
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

// pump delivers every pending registry event to the engine, the way one turn
// of the loop would, until the registry goes quiet
func pump(t *testing.T, e *Engine, reg adapter.Registry) {
	t.Helper()
	ctx := context.Background()
	for {
		events, err := reg.Poll(ctx, 5*time.Millisecond)
		require.NoError(t, err)
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			require.NoError(t, e.Handle(ctx, ev))
		}
	}
}

// settle discards setup announcements so a test starts from a quiet registry
func settle(t *testing.T, reg adapter.Registry) {
	t.Helper()
	_, err := reg.Poll(context.Background(), time.Millisecond)
	require.NoError(t, err)
}
