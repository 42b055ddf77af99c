package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemStore_ConcurrentAcquireSingleWinner hammers one task with
// competing lock attempts and checks exactly one caller wins.
func TestMemStore_ConcurrentAcquireSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	item, err := store.Create(ctx, task.Draft{Title: "contested"}, "seed")
	require.NoError(t, err)

	const racers = 32

	var wg sync.WaitGroup
	var winners sync.Map

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			got, err := store.AcquireLock(ctx, item.ID, user)
			if err == nil {
				winners.Store(user, got.Lock.By)
			} else if !errors.Is(err, task.ErrLockConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	winners.Range(func(user, owner any) bool {
		count++
		assert.Equal(t, user, owner)
		return true
	})
	assert.Equal(t, 1, count, "exactly one racer should hold the lock")

	current, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, current.Lock.Held())
}

// TestMemStore_ReadsAreCopies checks that callers cannot mutate stored
// state through returned items.
func TestMemStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	item, err := store.Create(ctx, task.Draft{Title: "shared"}, "alice")
	require.NoError(t, err)

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	got.Title = "tampered"
	got.Lock.By = "mallory"

	fresh, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "shared", fresh.Title)
	assert.False(t, fresh.Lock.Held())
}
