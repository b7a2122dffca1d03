package adapter

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"patchbay/internal/domain"
)

// firstUserClient is where the sequencer starts numbering user-space clients
const firstUserClient = 128

type memOwner struct {
	id    int
	name  string
	ports map[int]domain.PortInfo
}

type link struct {
	sender domain.Address
	dest   domain.Address
}

// Memory is an in-process Registry. It backs the tests and the --topology
// simulator, and is safe for concurrent use: one goroutine may mutate the
// topology while another polls for events.
type Memory struct {
	mu         sync.Mutex
	clientName string
	self       int
	owners     map[int]*memOwner
	links      map[link]struct{}
	queue      []Event
	wake       chan struct{}
	closed     bool
	subscribed []link
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty registry. clientName, when set, registers
// patchbay itself as a port-less owner the way a sequencer client would.
func NewMemory(clientName string) *Memory {
	m := &Memory{
		clientName: clientName,
		self:       -1,
		owners:     make(map[int]*memOwner),
		links:      make(map[link]struct{}),
		wake:       make(chan struct{}, 1),
	}
	if clientName != "" {
		m.self = firstUserClient
		m.owners[m.self] = &memOwner{id: m.self, name: clientName, ports: make(map[int]domain.PortInfo)}
	}
	return m
}

// ClientName returns the name patchbay registered under
func (m *Memory) ClientName() string {
	return m.clientName
}

// AddOwner registers an owner. Re-adding an existing id renames it.
func (m *Memory) AddOwner(id int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addOwner(id, name, true)
}

func (m *Memory) addOwner(id int, name string, announce bool) {
	if id == m.self {
		// A fixture claimed our id; move ourselves out of the way.
		self := m.owners[m.self]
		delete(m.owners, m.self)
		m.self = m.nextOwnerID(id)
		self.id = m.self
		m.owners[m.self] = self
	} else if o, ok := m.owners[id]; ok {
		o.name = name
		return
	}
	m.owners[id] = &memOwner{id: id, name: name, ports: make(map[int]domain.PortInfo)}
	if announce {
		m.push(Other(fmt.Sprintf("client_start %d", id)))
	}
}

func (m *Memory) nextOwnerID(reserved int) int {
	id := firstUserClient
	for {
		if _, taken := m.owners[id]; !taken && id != reserved {
			return id
		}
		id++
	}
}

// AddPort registers a port under an existing owner and announces it
func (m *Memory) AddPort(owner, port int, name string, caps domain.Capability) (domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPort(owner, port, name, caps, true)
}

func (m *Memory) addPort(owner, port int, name string, caps domain.Capability, announce bool) (domain.Address, error) {
	o, ok := m.owners[owner]
	if !ok {
		return domain.Address{}, fmt.Errorf("owner %d: %w", owner, ErrNotFound)
	}
	addr := domain.Address{Owner: owner, Port: port}
	o.ports[port] = domain.PortInfo{Address: addr, Name: name, Caps: caps}
	if announce {
		m.push(PortStart(addr))
	}
	return addr, nil
}

// RemovePort drops a port and every link that touches it. Only a port-exit
// announcement is emitted; the links disappear silently.
func (m *Memory) RemovePort(addr domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.owners[addr.Owner]
	if !ok {
		return
	}
	if _, ok := o.ports[addr.Port]; !ok {
		return
	}
	delete(o.ports, addr.Port)
	for l := range m.links {
		if l.sender == addr || l.dest == addr {
			delete(m.links, l)
		}
	}
	m.push(Other(fmt.Sprintf("port_exit %s", addr)))
}

// RemoveOwner drops an owner together with all its ports
func (m *Memory) RemoveOwner(id int) {
	m.mu.Lock()
	o, ok := m.owners[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	ports := make([]int, 0, len(o.ports))
	for p := range o.ports {
		ports = append(ports, p)
	}
	m.mu.Unlock()

	slices.Sort(ports)
	for _, p := range ports {
		m.RemovePort(domain.Address{Owner: id, Port: p})
	}

	m.mu.Lock()
	delete(m.owners, id)
	m.push(Other(fmt.Sprintf("client_exit %d", id)))
	m.mu.Unlock()
}

// Owners implements Registry
func (m *Memory) Owners(ctx context.Context) ([]domain.Owner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	ids := make([]int, 0, len(m.owners))
	for id := range m.owners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	owners := make([]domain.Owner, 0, len(ids))
	for _, id := range ids {
		o := m.owners[id]
		owner := domain.Owner{ID: o.id, Name: o.name}
		for _, p := range o.ports {
			owner.Ports = append(owner.Ports, p)
		}
		slices.SortFunc(owner.Ports, func(a, b domain.PortInfo) int { return a.Address.Port - b.Address.Port })
		owners = append(owners, owner)
	}
	return owners, nil
}

// OwnerInfo implements Registry
func (m *Memory) OwnerInfo(id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[id]
	if !ok {
		return "", fmt.Errorf("owner %d: %w", id, ErrNotFound)
	}
	return o.name, nil
}

// PortInfo implements Registry
func (m *Memory) PortInfo(addr domain.Address) (domain.PortInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portInfo(addr)
}

func (m *Memory) portInfo(addr domain.Address) (domain.PortInfo, error) {
	o, ok := m.owners[addr.Owner]
	if !ok {
		return domain.PortInfo{}, fmt.Errorf("port %s: %w", addr, ErrNotFound)
	}
	p, ok := o.ports[addr.Port]
	if !ok {
		return domain.PortInfo{}, fmt.Errorf("port %s: %w", addr, ErrNotFound)
	}
	return p, nil
}

// Subscribe implements Registry. A successful link is announced to every poller,
// including the caller.
func (m *Memory) Subscribe(sender, dest domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return &SubscriptionError{Sender: sender, Dest: dest, Err: ErrClosed}
	}
	if err := m.subscribe(sender, dest); err != nil {
		return err
	}
	m.subscribed = append(m.subscribed, link{sender: sender, dest: dest})
	m.push(Subscribed(sender, dest))
	return nil
}

func (m *Memory) subscribe(sender, dest domain.Address) error {
	from, err := m.portInfo(sender)
	if err != nil {
		return &SubscriptionError{Sender: sender, Dest: dest, Err: err}
	}
	to, err := m.portInfo(dest)
	if err != nil {
		return &SubscriptionError{Sender: sender, Dest: dest, Err: err}
	}
	if !from.Caps.Has(domain.CapRead) || !to.Caps.Has(domain.CapWrite) {
		return &SubscriptionError{Sender: sender, Dest: dest, Err: ErrIncompatible}
	}
	l := link{sender: sender, dest: dest}
	if _, ok := m.links[l]; ok {
		return &SubscriptionError{Sender: sender, Dest: dest, Err: ErrAlreadySubscribed}
	}
	m.links[l] = struct{}{}
	return nil
}

// Unsubscribe removes a link and announces it, the way an external patch tool would
func (m *Memory) Unsubscribe(sender, dest domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := link{sender: sender, dest: dest}
	if _, ok := m.links[l]; !ok {
		return fmt.Errorf("link %s -> %s: %w", sender, dest, ErrNotFound)
	}
	delete(m.links, l)
	m.push(Unsubscribed(sender, dest))
	return nil
}

// Linked reports whether sender is currently subscribed to dest
func (m *Memory) Linked(sender, dest domain.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[link{sender: sender, dest: dest}]
	return ok
}

// SubscribeCount returns how many Subscribe calls succeeded for the pair
func (m *Memory) SubscribeCount(sender, dest domain.Address) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.subscribed {
		if l.sender == sender && l.dest == dest {
			n++
		}
	}
	return n
}

// Inject queues an arbitrary event, for simulating registries that announce
// things Memory would not produce on its own
func (m *Memory) Inject(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(ev)
}

// push must be called with mu held
func (m *Memory) push(ev Event) {
	m.queue = append(m.queue, ev)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Poll implements Registry
func (m *Memory) Poll(ctx context.Context, timeout time.Duration) ([]Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if len(m.queue) > 0 {
			events := m.queue
			m.queue = nil
			m.mu.Unlock()
			return events, nil
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close implements Registry
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}
