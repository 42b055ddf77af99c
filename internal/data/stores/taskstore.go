// Package stores provides the task.Store implementations: SQLite-backed
// durable storage, an in-memory transient fallback, and the selector
// that picks between them.
package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/internal/data/db"
)

// TaskStore implements task.Store using SQLite.
//
// Lock acquisition and lock-gated mutations are single conditional UPDATE
// statements, so two racing callers can never both observe success:
// SQLite serializes the writes and the WHERE clause re-checks ownership
// and expiry inside the same statement.
type TaskStore struct {
	db  *db.DB
	now func() time.Time // swapped in tests to simulate TTL elapse
}

var _ task.Store = (*TaskStore)(nil)

// NewTaskStore creates a new SQLite-backed task store.
func NewTaskStore(database *db.DB) *TaskStore {
	return &TaskStore{db: database, now: time.Now}
}

const taskColumns = "id, title, description, completed, priority, created_by, created_at, updated_at, locked_by, locked_at"

// lockFree is the shared lock gate: the row is writable when no lock is
// held, the requester already holds it, or the held lock has expired.
// The leading placeholder is a bypass flag for identity-less callers.
const lockFree = "(? OR locked_by IS NULL OR locked_by = ? OR locked_at < ?)"

// Create persists a new task. Unset priority defaults to medium.
func (s *TaskStore) Create(ctx context.Context, draft task.Draft, createdBy string) (task.Item, error) {
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

	_, err := s.db.Conn().ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)",
		item.ID, item.Title, item.Description, item.Completed, string(item.Priority),
		item.CreatedBy, item.CreatedAt.UnixNano(), item.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return task.Item{}, fmt.Errorf("create task: %w", err)
	}

	return item, nil
}

// Get returns a task by id. Returns task.ErrNotFound if absent.
func (s *TaskStore) Get(ctx context.Context, id string) (task.Item, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	item, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Item{}, task.ErrNotFound
	}
	if err != nil {
		return task.Item{}, fmt.Errorf("get task %q: %w", id, err)
	}
	return item, nil
}

// List returns tasks matching the filter, newest first, paginated.
func (s *TaskStore) List(ctx context.Context, filter task.Filter, page task.Page) ([]task.Item, error) {
	where, args := filterClause(filter)
	page = page.Normalized()
	args = append(args, page.Limit, page.Offset())

	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks"+where+" ORDER BY created_at DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := []task.Item{}
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks rows: %w", err)
	}

	return items, nil
}

// Count returns the number of tasks matching the filter.
func (s *TaskStore) Count(ctx context.Context, filter task.Filter) (int64, error) {
	where, args := filterClause(filter)

	var count int64
	err := s.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// Update merges the patch into the task if no other user holds a fresh
// lock. The lock gate and the write happen in one statement.
func (s *TaskStore) Update(ctx context.Context, id string, patch task.Patch, requestedBy string) (task.Item, error) {
	now := s.now()

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET
			title = COALESCE(?, title),
			description = COALESCE(?, description),
			completed = COALESCE(?, completed),
			priority = COALESCE(?, priority),
			updated_at = ?
		WHERE id = ? AND `+lockFree,
		nullString(patch.Title), nullString(patch.Description), nullBool(patch.Completed), nullPriority(patch.Priority),
		now.UnixNano(),
		id, requestedBy == "", requestedBy, s.lockCutoff(now),
	)
	if err != nil {
		return task.Item{}, fmt.Errorf("update task %q: %w", id, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return task.Item{}, s.mutationBlocked(ctx, id)
	}

	return s.Get(ctx, id)
}

// Delete removes a task under the same lock rule as Update.
func (s *TaskStore) Delete(ctx context.Context, id string, requestedBy string) error {
	now := s.now()

	res, err := s.db.Conn().ExecContext(ctx,
		"DELETE FROM tasks WHERE id = ? AND "+lockFree,
		id, requestedBy == "", requestedBy, s.lockCutoff(now),
	)
	if err != nil {
		return fmt.Errorf("delete task %q: %w", id, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.mutationBlocked(ctx, id)
	}

	return nil
}

// Toggle flips the completion flag. Lock state is never consulted.
func (s *TaskStore) Toggle(ctx context.Context, id string) (task.Item, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		"UPDATE tasks SET completed = NOT completed, updated_at = ? WHERE id = ?",
		s.now().UnixNano(), id,
	)
	if err != nil {
		return task.Item{}, fmt.Errorf("toggle task %q: %w", id, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return task.Item{}, task.ErrNotFound
	}

	return s.Get(ctx, id)
}

// AcquireLock takes the edit lock for userID. The conditional UPDATE is
// the atomic compare-and-swap: it succeeds only when the row is
// unlocked, already ours, or holds an expired lock.
func (s *TaskStore) AcquireLock(ctx context.Context, id, userID string) (task.Item, error) {
	now := s.now()

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET locked_by = ?, locked_at = ?, updated_at = ?
		WHERE id = ? AND (locked_by IS NULL OR locked_by = ? OR locked_at < ?)`,
		userID, now.UnixNano(), now.UnixNano(),
		id, userID, s.lockCutoff(now),
	)
	if err != nil {
		return task.Item{}, fmt.Errorf("acquire lock on task %q: %w", id, err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return task.Item{}, s.mutationBlocked(ctx, id)
	}

	return s.Get(ctx, id)
}

// ReleaseLock clears the lock when forced (empty userID), owned by
// userID, or expired. A non-matching release is a silent no-op so a
// stale client can never strand an item.
func (s *TaskStore) ReleaseLock(ctx context.Context, id, userID string) (bool, error) {
	now := s.now()

	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET locked_by = NULL, locked_at = NULL, updated_at = ?
		WHERE id = ? AND locked_by IS NOT NULL AND `+lockFree,
		now.UnixNano(),
		id, userID == "", userID, s.lockCutoff(now),
	)
	if err != nil {
		return false, fmt.Errorf("release lock on task %q: %w", id, err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// IsLocked reports whether an unexpired lock is held on the task.
func (s *TaskStore) IsLocked(ctx context.Context, id string) (bool, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return item.Lock.Active(s.now()), nil
}

// LockedBy returns every task whose lock names userID, including
// logically expired locks, so a disconnect sweep can clear them all.
func (s *TaskStore) LockedBy(ctx context.Context, userID string) ([]task.Item, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE locked_by = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks locked by %q: %w", userID, err)
	}
	defer rows.Close()

	items := []task.Item{}
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks locked by %q scan: %w", userID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks locked by %q rows: %w", userID, err)
	}

	return items, nil
}

// Ping reports backend liveness.
func (s *TaskStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// lockCutoff returns the unix-nano instant before which a lock counts as
// expired.
func (s *TaskStore) lockCutoff(now time.Time) int64 {
	return now.Add(-task.LockTTL).UnixNano()
}

// mutationBlocked explains a zero-row conditional write: either the task
// is gone or another user's fresh lock gated it out.
func (s *TaskStore) mutationBlocked(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return task.ErrLockConflict
}

func filterClause(f task.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, *f.Completed)
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(f.Priority))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (task.Item, error) {
	var (
		item      task.Item
		priority  string
		createdAt int64
		updatedAt int64
		lockedBy  sql.NullString
		lockedAt  sql.NullInt64
	)

	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.Completed, &priority,
		&item.CreatedBy, &createdAt, &updatedAt, &lockedBy, &lockedAt,
	)
	if err != nil {
		return task.Item{}, err
	}

	item.Priority = task.Priority(priority)
	item.CreatedAt = time.Unix(0, createdAt)
	item.UpdatedAt = time.Unix(0, updatedAt)

	if lockedBy.Valid && lockedAt.Valid {
		at := time.Unix(0, lockedAt.Int64)
		item.Lock = task.LockState{By: lockedBy.String, At: &at}
	}

	return item, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullPriority(v *task.Priority) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
