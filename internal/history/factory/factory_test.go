package factory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSinkFromDSNSQLite(t *testing.T) {
	sink, err := NewSinkFromDSN("sqlite://:memory:")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	// Bare paths default to SQLite.
	sink, err = NewSinkFromDSN(t.TempDir() + "/audit.db")
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestNewSinkFromDSNErrors(t *testing.T) {
	_, err := NewSinkFromDSN("")
	require.Error(t, err)

	_, err = NewSinkFromDSN("redis://localhost:6379")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported DSN")
}
