package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/store"
)

// NewTestStore opens a migrated store in a per-test directory and closes it
// when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err, "opening test store")
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}
