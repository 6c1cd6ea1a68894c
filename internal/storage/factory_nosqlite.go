//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(path string) (Store, error) {
	return nil, fmt.Errorf("%w: sqlite run store at %q needs a build with -tags sqlite", ErrUnsupportedBackend, path)
}
