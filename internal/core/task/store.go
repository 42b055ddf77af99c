package task

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by stores and the collaboration service.
var (
	// ErrNotFound is returned when no task exists for the given id.
	ErrNotFound = errors.New("task not found")

	// ErrLockConflict is returned when a mutation is blocked by another
	// user's unexpired edit lock. Callers must not retry automatically.
	ErrLockConflict = errors.New("task is locked by another user")

	// ErrValidation is returned for malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable wraps storage I/O failures.
	ErrUnavailable = errors.New("storage backend unavailable")
)

// Unavailable marks a backend failure so callers can match ErrUnavailable
// while the underlying cause stays in the chain.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}

// Validate checks a draft before it reaches a store.
func (d Draft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, d.Priority)
	}
	return nil
}

// Validate checks a patch before it reaches a store.
func (p Patch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("%w: title cannot be cleared", ErrValidation)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, *p.Priority)
	}
	return nil
}

// Validate rejects out-of-range pagination before it reaches a store.
// Zero fields are allowed; they normalize to defaults.
func (p Page) Validate() error {
	n := p.Normalized()
	if n.Number < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}
	if n.Limit < 1 || n.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxLimit)
	}
	return nil
}

// Store is the contract shared by the durable (SQLite) and transient
// (in-memory) backends. All implementations must be safe for concurrent
// use, and AcquireLock must be a single atomic conditional write so that
// racing callers can never both observe success.
type Store interface {
	// Create persists a new task owned by createdBy. Unset priority
	// defaults to medium; lock fields start cleared.
	Create(ctx context.Context, draft Draft, createdBy string) (Item, error)

	// Get returns a task by id. Returns ErrNotFound if absent. Does not
	// consult lock state.
	Get(ctx context.Context, id string) (Item, error)

	// List returns tasks matching the filter, newest-created first,
	// paginated by offset. Page bounds are validated upstream.
	List(ctx context.Context, filter Filter, page Page) ([]Item, error)

	// Count returns the number of tasks matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Update merges the patch into the task and bumps UpdatedAt.
	// Returns ErrLockConflict while another user's unexpired lock is
	// held, unless requestedBy is empty (identity-less callers bypass
	// the lock check). Returns ErrNotFound if absent.
	Update(ctx context.Context, id string, patch Patch, requestedBy string) (Item, error)

	// Delete removes a task, under the same lock rule as Update.
	// Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string, requestedBy string) error

	// Toggle flips the completion flag. Toggling never consults lock
	// state. Returns ErrNotFound if absent.
	Toggle(ctx context.Context, id string) (Item, error)

	// AcquireLock takes the edit lock for userID. Succeeds when the task
	// is unlocked, already held by the same user (refresh), or the
	// current lock has expired. Returns ErrLockConflict while another
	// user's lock is fresh, ErrNotFound if absent.
	AcquireLock(ctx context.Context, id, userID string) (Item, error)

	// ReleaseLock clears the lock if userID is empty (forced), matches
	// the holder, or the lock has expired. Anything else is a no-op, not
	// an error. The returned bool reports whether a lock was cleared.
	ReleaseLock(ctx context.Context, id, userID string) (bool, error)

	// IsLocked reports whether an unexpired lock is held on the task.
	IsLocked(ctx context.Context, id string) (bool, error)

	// LockedBy returns every task whose lock fields name userID,
	// including logically expired ones.
	LockedBy(ctx context.Context, userID string) ([]Item, error)

	// Ping reports backend liveness.
	Ping(ctx context.Context) error
}
