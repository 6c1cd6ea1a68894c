//go:build !sqlite

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	_, err := NewStore("sqlite", "runs.db")
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}
