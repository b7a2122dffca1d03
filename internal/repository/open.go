package repository

import (
	"fmt"

	"patchbay/internal/repository/jsonfile"
	"patchbay/internal/repository/sqlite"
)

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open creates the store for the named backend at path
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return jsonfile.New(path), nil
	case BackendSQLite:
		repo, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
