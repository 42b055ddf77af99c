// Package presence tracks connected sessions per user and fans mutation
// events out to every session. It owns disconnect reconciliation: when a
// user's last session closes, their edit locks are released.
package presence

import (
	"time"

	"github.com/hay-kot/corkboard/internal/core/task"
)

// Event names the broadcast event types.
type Event string

const (
	// Keep list sorted A-Z
	EventPresenceList     Event = "presence:list"
	EventTaskCreated      Event = "task:created"
	EventTaskDeleted      Event = "task:deleted"
	EventTaskLocked       Event = "task:locked"
	EventTaskUnlocked     Event = "task:unlocked"
	EventTaskUpdated      Event = "task:updated"
	EventUserConnected    Event = "user:connected"
	EventUserDisconnected Event = "user:disconnected"
)

// Envelope is what a session's receive channel carries: the event name
// plus its payload, serializable as-is for the transport layer.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

// TaskPayload accompanies task:created and task:updated.
type TaskPayload struct {
	Item      task.Item `json:"item"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskDeletedPayload accompanies task:deleted.
type TaskDeletedPayload struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskLockedPayload accompanies task:locked.
type TaskLockedPayload struct {
	TaskID   string    `json:"task_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	LockedAt time.Time `json:"locked_at"`
}

// TaskUnlockedPayload accompanies task:unlocked.
type TaskUnlockedPayload struct {
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// UserPayload accompanies user:connected and user:disconnected, and is
// the element type of the presence list.
type UserPayload struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connected_at"`
}

// PresencePayload accompanies presence:list: one entry per distinct
// user, first-connected session's metadata winning.
type PresencePayload struct {
	Users []UserPayload `json:"users"`
}
