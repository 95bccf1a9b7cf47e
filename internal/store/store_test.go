package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// execAll runs each statement in order.
func execAll(t *testing.T, s *Store, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		require.NoError(t, s.Exec(context.Background(), stmt), stmt)
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.WriteVisibility(context.Background(), "Order", "true"))
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"qtoken_visibility", "qtoken_format"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM qtoken_visibility").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestExec_Error(t *testing.T) {
	s := createTestStore(t)
	err := s.Exec(context.Background(), "CREATE TABLE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec:")
}
