package codec

import (
	"errors"
	"fmt"
	"io"

	"patchbay/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlDocument represents the YAML structure for a connection set
type yamlDocument struct {
	Connections []yamlConnection `yaml:"connections"`
}

type yamlConnection struct {
	Sender string `yaml:"sender"`
	Dest   string `yaml:"dest"`
}

// Parse imports connections from YAML. An empty document yields an empty slice.
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Connection, error) {
	var doc yamlDocument
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	conns := make([]domain.Connection, 0, len(doc.Connections))
	for i, yc := range doc.Connections {
		if yc.Sender == "" || yc.Dest == "" {
			return nil, fmt.Errorf("connection %d: sender and dest are required", i)
		}
		conns = append(conns, domain.NewConnection(domain.Name(yc.Sender), domain.Name(yc.Dest)))
	}

	return conns, nil
}

// Export exports connections to YAML
func (c *YAMLCodec) Export(conns []domain.Connection, w io.Writer) error {
	normalized := domain.Normalize(conns)
	doc := yamlDocument{
		Connections: make([]yamlConnection, 0, len(normalized)),
	}
	for _, conn := range normalized {
		doc.Connections = append(doc.Connections, yamlConnection{
			Sender: string(conn.Sender),
			Dest:   string(conn.Dest),
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
