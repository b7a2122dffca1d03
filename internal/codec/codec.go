package codec

import (
	"fmt"
	"io"
	"strings"

	"patchbay/internal/domain"
)

// Importer interface for reading connection sets from various formats
type Importer interface {
	Parse(r io.Reader) ([]domain.Connection, error)
	Format() string
}

// Exporter interface for writing connection sets to various formats
type Exporter interface {
	Export(conns []domain.Connection, w io.Writer) error
	Format() string
}

// Codec reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ForFormat returns the codec for "json" or "yaml" (also "yml")
func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
