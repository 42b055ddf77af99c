// Package board is the collaboration service: it orchestrates task CRUD
// and locking against the selected store, translates storage outcomes
// into domain error kinds, and fans successful mutations out through the
// presence coordinator.
package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/corkboard/internal/core/presence"
	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/rs/zerolog"
)

// Identity is the authenticated caller, supplied by the auth
// collaborator on every mutating call. The service trusts it as-is.
type Identity struct {
	UserID   string
	Username string
}

// Service wraps task.Store with caller identity, error translation, and
// broadcast of successful mutations. It adds no business rules beyond
// what the store enforces, except stamping CreatedBy: the store itself
// knows nothing about authentication.
type Service struct {
	store    task.Store
	presence *presence.Coordinator
	log      zerolog.Logger
}

// NewService creates a new collaboration service.
func NewService(store task.Store, coord *presence.Coordinator, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		presence: coord,
		log:      log.With().Str("component", "board").Logger(),
	}
}

// Presence exposes the coordinator so the transport layer can wire
// connect/disconnect hooks.
func (s *Service) Presence() *presence.Coordinator {
	return s.presence
}

// Create validates the draft, stamps the creator, persists the task, and
// broadcasts task:created.
func (s *Service) Create(ctx context.Context, who Identity, draft task.Draft) (task.Item, error) {
	s.log.Debug().Str("user", who.UserID).Str("title", draft.Title).Msg("creating task")

	if err := draft.Validate(); err != nil {
		return task.Item{}, err
	}

	item, err := s.store.Create(ctx, draft, who.UserID)
	if err != nil {
		s.log.Error().Err(err).Str("user", who.UserID).Msg("create task failed")
		return task.Item{}, task.Unavailable(fmt.Errorf("create task: %w", err))
	}

	s.log.Info().Str("task", item.ID).Str("user", who.UserID).Msg("task created")
	s.presence.BroadcastCreated(item, who.UserID, who.Username)
	return item, nil
}

// Get returns a single task.
func (s *Service) Get(ctx context.Context, id string) (task.Item, error) {
	s.log.Debug().Str("task", id).Msg("fetching task")

	item, err := s.store.Get(ctx, id)
	if err != nil {
		return task.Item{}, s.translate("get", id, err)
	}
	return item, nil
}

// List returns tasks matching the filter with validated pagination.
func (s *Service) List(ctx context.Context, filter task.Filter, page task.Page) ([]task.Item, error) {
	s.log.Debug().Int("page", page.Normalized().Number).Int("limit", page.Normalized().Limit).Msg("listing tasks")

	if err := page.Validate(); err != nil {
		return nil, err
	}

	items, err := s.store.List(ctx, filter, page)
	if err != nil {
		s.log.Error().Err(err).Msg("list tasks failed")
		return nil, task.Unavailable(fmt.Errorf("list tasks: %w", err))
	}
	return items, nil
}

// Count returns the number of tasks matching the filter.
func (s *Service) Count(ctx context.Context, filter task.Filter) (int64, error) {
	count, err := s.store.Count(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("count tasks failed")
		return 0, task.Unavailable(fmt.Errorf("count tasks: %w", err))
	}
	return count, nil
}

// Update applies a patch under the lock rules and broadcasts
// task:updated on success.
func (s *Service) Update(ctx context.Context, who Identity, id string, patch task.Patch) (task.Item, error) {
	s.log.Debug().Str("task", id).Str("user", who.UserID).Msg("updating task")

	if err := patch.Validate(); err != nil {
		return task.Item{}, err
	}

	item, err := s.store.Update(ctx, id, patch, who.UserID)
	if err != nil {
		return task.Item{}, s.translate("update", id, err)
	}

	s.log.Info().Str("task", id).Str("user", who.UserID).Msg("task updated")
	s.presence.BroadcastUpdated(item, who.UserID, who.Username)
	return item, nil
}

// Delete removes a task under the lock rules and broadcasts
// task:deleted on success.
func (s *Service) Delete(ctx context.Context, who Identity, id string) error {
	s.log.Debug().Str("task", id).Str("user", who.UserID).Msg("deleting task")

	if err := s.store.Delete(ctx, id, who.UserID); err != nil {
		return s.translate("delete", id, err)
	}

	s.log.Info().Str("task", id).Str("user", who.UserID).Msg("task deleted")
	s.presence.BroadcastDeleted(id, who.UserID, who.Username)
	return nil
}

// Toggle flips completion (lock-exempt) and broadcasts task:updated.
func (s *Service) Toggle(ctx context.Context, who Identity, id string) (task.Item, error) {
	s.log.Debug().Str("task", id).Str("user", who.UserID).Msg("toggling task")

	item, err := s.store.Toggle(ctx, id)
	if err != nil {
		return task.Item{}, s.translate("toggle", id, err)
	}

	s.log.Info().Str("task", id).Bool("completed", item.Completed).Msg("task toggled")
	s.presence.BroadcastUpdated(item, who.UserID, who.Username)
	return item, nil
}

// Lock acquires the edit lock for the caller and broadcasts task:locked.
func (s *Service) Lock(ctx context.Context, who Identity, id string) (task.Item, error) {
	s.log.Debug().Str("task", id).Str("user", who.UserID).Msg("acquiring task lock")

	item, err := s.store.AcquireLock(ctx, id, who.UserID)
	if err != nil {
		if errors.Is(err, task.ErrLockConflict) {
			s.log.Info().Str("task", id).Str("user", who.UserID).Msg("task lock held by another user")
		}
		return task.Item{}, s.translate("lock", id, err)
	}

	s.log.Info().Str("task", id).Str("user", who.UserID).Msg("task locked")
	if item.Lock.At != nil {
		s.presence.BroadcastLocked(id, who.UserID, who.Username, *item.Lock.At)
	}
	return item, nil
}

// Unlock releases the caller's lock. Releasing a lock you do not hold
// is a silent no-op; task:unlocked is broadcast only when a lock was
// actually cleared.
func (s *Service) Unlock(ctx context.Context, who Identity, id string) error {
	return s.unlock(ctx, id, who.UserID)
}

// ForceUnlock clears the lock regardless of owner. Operator escape
// hatch; same broadcast behavior as Unlock.
func (s *Service) ForceUnlock(ctx context.Context, id string) error {
	return s.unlock(ctx, id, "")
}

func (s *Service) unlock(ctx context.Context, id, userID string) error {
	s.log.Debug().Str("task", id).Str("user", userID).Msg("releasing task lock")

	released, err := s.store.ReleaseLock(ctx, id, userID)
	if err != nil {
		return s.translate("unlock", id, err)
	}

	if released {
		s.log.Info().Str("task", id).Str("user", userID).Msg("task unlocked")
		s.presence.BroadcastUnlocked(id, userID)
	}
	return nil
}

// translate passes domain error kinds through untouched and wraps
// everything else as a backend failure with operation context.
func (s *Service) translate(op, id string, err error) error {
	if errors.Is(err, task.ErrNotFound) || errors.Is(err, task.ErrLockConflict) {
		return err
	}

	s.log.Error().Err(err).Str("op", op).Str("task", id).Msg("store operation failed")
	return task.Unavailable(fmt.Errorf("%s task %q: %w", op, id, err))
}
