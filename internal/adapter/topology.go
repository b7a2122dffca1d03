package adapter

import (
	"fmt"
	"io"
	"os"

	"patchbay/internal/domain"

	"gopkg.in/yaml.v3"
)

// TopologyYAML is the fixture format used to seed a Memory registry
type TopologyYAML struct {
	Owners        []OwnerYAML        `yaml:"owners"`
	Subscriptions []SubscriptionYAML `yaml:"subscriptions,omitempty"`
}

// OwnerYAML represents an owner in YAML format
type OwnerYAML struct {
	ID    int        `yaml:"id"`
	Name  string     `yaml:"name"`
	Ports []PortYAML `yaml:"ports,omitempty"`
}

// PortYAML represents a port in YAML format
type PortYAML struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Caps string `yaml:"caps"` // e.g. "read|write", "write|no-export"
}

// SubscriptionYAML is a link that already exists when the fixture is loaded
type SubscriptionYAML struct {
	Sender string `yaml:"sender"` // owner:port
	Dest   string `yaml:"dest"`
}

// LoadTopologyFile parses a topology fixture from disk
func LoadTopologyFile(path string) (*TopologyYAML, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topology: %w", err)
	}
	defer f.Close()
	return ParseTopology(f)
}

// ParseTopology parses a topology fixture
func ParseTopology(r io.Reader) (*TopologyYAML, error) {
	var t TopologyYAML
	if err := yaml.NewDecoder(r).Decode(&t); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse topology YAML: %w", err)
	}
	return &t, nil
}

// Apply seeds the registry with the fixture without announcing anything,
// so the fixture describes the world as it is when patchbay starts.
func (t *TopologyYAML) Apply(m *Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range t.Owners {
		m.addOwner(o.ID, o.Name, false)
		for _, p := range o.Ports {
			if _, err := m.addPort(o.ID, p.ID, p.Name, domain.ParseCapability(p.Caps), false); err != nil {
				return err
			}
		}
	}

	for _, s := range t.Subscriptions {
		sender, err := domain.ParseAddress(s.Sender)
		if err != nil {
			return fmt.Errorf("subscription sender: %w", err)
		}
		dest, err := domain.ParseAddress(s.Dest)
		if err != nil {
			return fmt.Errorf("subscription dest: %w", err)
		}
		if err := m.subscribe(sender, dest); err != nil {
			return err
		}
	}
	return nil
}
