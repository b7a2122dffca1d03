package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"patchbay/internal/codec"
	"patchbay/internal/domain"
)

// Store persists the connection set as a JSON file
type Store struct {
	path  string
	codec *codec.JSONCodec
}

// New creates a store backed by the file at path. Nothing is touched on disk
// until the first Save.
func New(path string) *Store {
	return &Store{path: path, codec: codec.NewJSONCodec()}
}

// Path returns the file the store reads and writes
func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file yields an empty set.
func (s *Store) Load(ctx context.Context) (*domain.ConnectionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewConnectionSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read connections: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewConnectionSet(), nil
	}

	conns, err := s.codec.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return domain.NewConnectionSet(conns...), nil
}

// Save writes the set atomically: temp file in the same directory, then rename
func (s *Store) Save(ctx context.Context, set *domain.ConnectionSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.codec.Export(set.Connections(), &buf); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Close is a no-op; the file is only open during Load and Save
func (s *Store) Close() error {
	return nil
}
