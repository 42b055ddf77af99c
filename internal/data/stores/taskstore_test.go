package stores

import (
	"context"
	"testing"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/internal/data/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskStore_SurvivesReopen checks tasks and live locks persist
// across a close/reopen of the database, which is the whole point of the
// durable backend.
func TestTaskStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)

	store := NewTaskStore(database)
	item, err := store.Create(ctx, task.Draft{
		Title:    "persist me",
		Priority: task.PriorityHigh,
	}, "alice")
	require.NoError(t, err)

	_, err = store.AcquireLock(ctx, item.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, database.Close())

	reopened, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	store = NewTaskStore(reopened)
	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, "persist me", got.Title)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, "alice", got.Lock.By)
	require.NotNil(t, got.Lock.At)
	assert.Equal(t, item.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
}

func TestTaskStore_PingAfterClose(t *testing.T) {
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)

	store := NewTaskStore(database)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, database.Close())
	assert.Error(t, store.Ping(context.Background()))
}
