package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		d, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		d.Close()
	}

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	for _, table := range []string{"alerts", "cadence", "presence"} {
		var name string
		err := d.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	d := createTestDB(t)

	assert.NoError(t, d.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, d.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, d.verifyPragma("user_version", "1"))
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := Open(path)
	require.NoError(t, err)
	_, err = d.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	d.Close()

	_, err = Open(path)
	assert.Error(t, err)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	d := &DB{db: nil}
	assert.NoError(t, d.Close())
}
