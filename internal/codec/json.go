package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"patchbay/internal/domain"
)

// JSONCodec handles the on-disk JSON array of {sender, dest} records
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a JSON array of connections. A null document yields an empty slice;
// a record without sender or dest is an error.
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Connection, error) {
	var conns []domain.Connection
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&conns); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if conns == nil {
		conns = []domain.Connection{}
	}
	for i, c := range conns {
		if c.Sender == "" || c.Dest == "" {
			return nil, fmt.Errorf("connection %d: sender and dest are required", i)
		}
	}
	return conns, nil
}

// Export writes the connections sorted, deduplicated and indented
func (c *JSONCodec) Export(conns []domain.Connection, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(domain.Normalize(conns)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
