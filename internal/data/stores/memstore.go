package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/corkboard/internal/core/task"
)

// MemStore implements task.Store with in-process storage. It is the
// availability fallback when the durable backend is unreachable: same
// semantics, nothing survives a restart.
//
// A single mutex guards every read-modify-write, which makes the lock
// acquisition transition atomic without any further ceremony.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]task.Item
	now   func() time.Time // swapped in tests to simulate TTL elapse
}

var _ task.Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory task store.
func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[string]task.Item),
		now:   time.Now,
	}
}

// Create stores a new task. Unset priority defaults to medium.
func (s *MemStore) Create(_ context.Context, draft task.Draft, createdBy string) (task.Item, error) {
	now := s.now()
	item := task.Item{
		ID:          uuid.NewString(),
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Priority == "" {
		item.Priority = task.PriorityMedium
	}

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	return item, nil
}

// Get returns a task by id. Returns task.ErrNotFound if absent.
func (s *MemStore) Get(_ context.Context, id string) (task.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return task.Item{}, task.ErrNotFound
	}
	return item.Clone(), nil
}

// List returns tasks matching the filter, newest first, paginated.
func (s *MemStore) List(_ context.Context, filter task.Filter, page task.Page) ([]task.Item, error) {
	s.mu.RLock()
	matched := make([]task.Item, 0, len(s.items))
	for _, item := range s.items {
		if filter.Matches(item) {
			matched = append(matched, item.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page = page.Normalized()
	offset := page.Offset()
	if offset >= len(matched) {
		return []task.Item{}, nil
	}

	end := offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// Count returns the number of tasks matching the filter.
func (s *MemStore) Count(_ context.Context, filter task.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, item := range s.items {
		if filter.Matches(item) {
			count++
		}
	}
	return count, nil
}

// Update merges the patch into the task if no other user holds a fresh lock.
func (s *MemStore) Update(_ context.Context, id string, patch task.Patch, requestedBy string) (task.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return task.Item{}, task.ErrNotFound
	}
	if item.Lock.Blocks(requestedBy, s.now()) {
		return task.Item{}, task.ErrLockConflict
	}

	patch.Apply(&item)
	item.UpdatedAt = s.now()
	s.items[id] = item

	return item.Clone(), nil
}

// Delete removes a task under the same lock rule as Update.
func (s *MemStore) Delete(_ context.Context, id string, requestedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return task.ErrNotFound
	}
	if item.Lock.Blocks(requestedBy, s.now()) {
		return task.ErrLockConflict
	}

	delete(s.items, id)
	return nil
}

// Toggle flips the completion flag. Lock state is never consulted.
func (s *MemStore) Toggle(_ context.Context, id string) (task.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return task.Item{}, task.ErrNotFound
	}

	item.Completed = !item.Completed
	item.UpdatedAt = s.now()
	s.items[id] = item

	return item.Clone(), nil
}

// AcquireLock takes the edit lock for userID. The check and the write
// happen under one critical section, so exactly one racing caller wins.
func (s *MemStore) AcquireLock(_ context.Context, id, userID string) (task.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return task.Item{}, task.ErrNotFound
	}

	now := s.now()
	if item.Lock.Active(now) && item.Lock.By != userID {
		return task.Item{}, task.ErrLockConflict
	}

	at := now
	item.Lock = task.LockState{By: userID, At: &at}
	item.UpdatedAt = now
	s.items[id] = item

	return item.Clone(), nil
}

// ReleaseLock clears the lock when forced (empty userID), owned by
// userID, or expired. A non-matching release is a silent no-op.
func (s *MemStore) ReleaseLock(_ context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || !item.Lock.Held() {
		return false, nil
	}

	now := s.now()
	if userID != "" && item.Lock.By != userID && !item.Lock.Expired(now) {
		return false, nil
	}

	item.Lock = task.LockState{}
	item.UpdatedAt = now
	s.items[id] = item

	return true, nil
}

// IsLocked reports whether an unexpired lock is held on the task.
func (s *MemStore) IsLocked(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return false, task.ErrNotFound
	}
	return item.Lock.Active(s.now()), nil
}

// LockedBy returns every task whose lock names userID, including
// logically expired locks.
func (s *MemStore) LockedBy(_ context.Context, userID string) ([]task.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []task.Item{}
	for _, item := range s.items {
		if item.Lock.By == userID && item.Lock.Held() {
			items = append(items, item.Clone())
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Ping always succeeds: the transient backend is the process itself.
func (s *MemStore) Ping(_ context.Context) error {
	return nil
}
