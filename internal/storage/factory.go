package storage

import (
	"errors"
	"fmt"
)

var ErrUnsupportedBackend = errors.New("unsupported run store backend")

// NewStore picks the run store backend by name. An empty kind selects the
// in-process store; sqlitePath is only read by the sqlite backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q (want memory or sqlite)", ErrUnsupportedBackend, kind)
	}
}

// CloseIfSupported releases backends that hold a database handle.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
