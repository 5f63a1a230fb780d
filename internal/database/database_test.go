package database

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}
	require.Equal(t, ups, downs)

	up, err := fs.ReadFile(migrationFiles, "migrations/000001_create_session_results.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS session_results")
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Message: "duplicate key value"}

	require.True(t, IsUniqueViolation(dup))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup)))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("boom")))
	require.False(t, IsUniqueViolation(nil))
}
