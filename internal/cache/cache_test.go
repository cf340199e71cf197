package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/activity"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		c, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, c.Close())
	}

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	for _, table := range []string{"entries", "rewind_status"} {
		var name string
		err := c.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	c := createTestCache(t)

	assert.NoError(t, c.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, c.verifyPragma("synchronous", "1"))
	assert.NoError(t, c.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	c := createTestCache(t)

	var version int
	require.NoError(t, c.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var name string
	err := c.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_entries_rewind'",
	).Scan(&name)
	assert.NoError(t, err, "v1 migration index missing")
}

func TestOpen_PureGoDriver(t *testing.T) {
	c := createTestCache(t, WithDriver(DriverPureGo))
	ctx := context.Background()

	n, err := c.UpsertEntries(ctx, siteA, []activity.LogEntry{testEntry("a", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := c.Entries(ctx, siteA, activity.Ascending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ActivityID)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), WithDriver("postgres"))
	assert.ErrorContains(t, err, "unsupported driver")
}
