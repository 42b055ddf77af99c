package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(t.TempDir(), DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpen_AppliesSchema(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	_, err := database.Conn().ExecContext(ctx, "SELECT 1 FROM tasks LIMIT 0")
	require.NoError(t, err, "tasks table should exist")
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)

	_, err = first.Conn().ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, completed, priority, created_by, created_at, updated_at)
		VALUES ('t-1', 'seed', '', 0, 'medium', 'alice', 1, 1)
	`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening the same directory re-runs the schema without clobbering data.
	second, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	var count int
	err = second.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPing(t *testing.T) {
	database := openTestDB(t)
	assert.NoError(t, database.Ping(context.Background()))
}

func TestOpen_CreatesFileInDataDir(t *testing.T) {
	dir := t.TempDir()

	database, err := Open(dir, DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	assert.FileExists(t, filepath.Join(dir, Filename))
}
