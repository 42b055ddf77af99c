package presence

import (
	"context"
	"sync"
	"time"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/pkg/randid"
	"github.com/rs/zerolog"
)

// defaultBuffer is the per-session outbound channel depth. Sends never
// block: a session that falls this far behind starts dropping events.
const defaultBuffer = 64

// Session identifies one live client connection. A user may hold
// several concurrent sessions (multiple tabs or devices).
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connected_at"`
}

// LockSweeper is the slice of the store the coordinator needs to
// reconcile locks when a user fully disconnects.
type LockSweeper interface {
	LockedBy(ctx context.Context, userID string) ([]task.Item, error)
	ReleaseLock(ctx context.Context, id, userID string) (bool, error)
}

type connection struct {
	Session
	out chan Envelope
}

// Coordinator tracks connected sessions and fans events out to all of
// them. Fan-out is fire-and-forget with per-session buffers, so one
// slow receiver never stalls delivery to the rest.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[string]*connection
	order    []string // session ids in connect order; first-seen wins presence dedup

	// emitMu serializes broadcasts so per-item events reach every
	// session in the order the store operations completed.
	emitMu sync.Mutex

	locks  LockSweeper
	log    zerolog.Logger
	buffer int
	now    func() time.Time

	onDrop func(sessionID string, env Envelope)
}

// NewCoordinator creates a coordinator that sweeps locks through the
// given store slice on final disconnect.
func NewCoordinator(locks LockSweeper, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*connection),
		locks:    locks,
		log:      log.With().Str("component", "presence").Logger(),
		buffer:   defaultBuffer,
		now:      time.Now,
	}
}

// OnDrop registers a hook fired when a session's buffer overflows and
// an event is discarded. Intended for transport-side logging.
func (c *Coordinator) OnDrop(fn func(sessionID string, env Envelope)) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

// Connect registers a session and returns its receive channel. All
// other sessions are told about the user; the new session receives the
// current deduplicated presence list. A missing session id gets a
// generated one (readable back via the Session accessors).
func (c *Coordinator) Connect(sess Session) (string, <-chan Envelope) {
	if sess.ID == "" {
		sess.ID = randid.Generate(8)
	}
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = c.now()
	}

	conn := &connection{Session: sess, out: make(chan Envelope, c.buffer)}

	c.mu.Lock()
	c.sessions[sess.ID] = conn
	c.order = append(c.order, sess.ID)
	c.mu.Unlock()

	c.log.Info().
		Str("session", sess.ID).
		Str("user", sess.UserID).
		Msg("session connected")

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	connected := Envelope{Event: EventUserConnected, Payload: UserPayload{
		UserID:      sess.UserID,
		Username:    sess.Username,
		ConnectedAt: sess.ConnectedAt,
	}}

	c.mu.RLock()
	for id, other := range c.sessions {
		if id == sess.ID {
			continue
		}
		c.deliver(other, connected)
	}
	list := c.presenceLocked()
	c.deliver(conn, Envelope{Event: EventPresenceList, Payload: PresencePayload{Users: list}})
	c.mu.RUnlock()

	return sess.ID, conn.out
}

// Disconnect removes a session. The bookkeeping removal is
// unconditional; the lock sweep and the user:disconnected broadcast
// only happen when no sibling session remains for the same user.
func (c *Coordinator) Disconnect(ctx context.Context, sessionID string) {
	c.mu.Lock()
	conn, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return
	}

	delete(c.sessions, sessionID)
	for i, id := range c.order {
		if id == sessionID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	close(conn.out)

	siblings := false
	for _, other := range c.sessions {
		if other.UserID == conn.UserID {
			siblings = true
			break
		}
	}
	c.mu.Unlock()

	if siblings {
		c.log.Debug().
			Str("session", sessionID).
			Str("user", conn.UserID).
			Msg("session closed, user still present elsewhere")
		return
	}

	c.sweepLocks(ctx, conn.UserID)

	c.log.Info().
		Str("session", sessionID).
		Str("user", conn.UserID).
		Msg("user disconnected")

	c.broadcast(Envelope{Event: EventUserDisconnected, Payload: UserPayload{
		UserID:      conn.UserID,
		Username:    conn.Username,
		ConnectedAt: conn.ConnectedAt,
	}})
}

// RequestPresence replies to one session with the current deduplicated
// presence list.
func (c *Coordinator) RequestPresence(sessionID string) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()

	conn, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	c.deliver(conn, Envelope{Event: EventPresenceList, Payload: PresencePayload{Users: c.presenceLocked()}})
}

// Presence returns the current presence list: one entry per distinct
// user id, first-connected session's metadata winning.
func (c *Coordinator) Presence() []UserPayload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presenceLocked()
}

// SessionCount returns the number of live sessions (not distinct users).
func (c *Coordinator) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// BroadcastCreated fans a task:created event out to every session,
// sender included, so the sender's other tabs update too.
func (c *Coordinator) BroadcastCreated(item task.Item, userID, username string) {
	c.broadcast(Envelope{Event: EventTaskCreated, Payload: TaskPayload{
		Item: item, UserID: userID, Username: username, Timestamp: c.now().UTC(),
	}})
}

// BroadcastUpdated fans a task:updated event out to every session.
func (c *Coordinator) BroadcastUpdated(item task.Item, userID, username string) {
	c.broadcast(Envelope{Event: EventTaskUpdated, Payload: TaskPayload{
		Item: item, UserID: userID, Username: username, Timestamp: c.now().UTC(),
	}})
}

// BroadcastDeleted fans a task:deleted event out to every session.
func (c *Coordinator) BroadcastDeleted(taskID, userID, username string) {
	c.broadcast(Envelope{Event: EventTaskDeleted, Payload: TaskDeletedPayload{
		TaskID: taskID, UserID: userID, Username: username, Timestamp: c.now().UTC(),
	}})
}

// BroadcastLocked fans a task:locked event out to every session.
func (c *Coordinator) BroadcastLocked(taskID, userID, username string, lockedAt time.Time) {
	c.broadcast(Envelope{Event: EventTaskLocked, Payload: TaskLockedPayload{
		TaskID: taskID, UserID: userID, Username: username, LockedAt: lockedAt,
	}})
}

// BroadcastUnlocked fans a task:unlocked event out to every session.
func (c *Coordinator) BroadcastUnlocked(taskID, userID string) {
	c.broadcast(Envelope{Event: EventTaskUnlocked, Payload: TaskUnlockedPayload{
		TaskID: taskID, UserID: userID, UnlockedAt: c.now().UTC(),
	}})
}

// sweepLocks releases every lock held by the departed user. Individual
// failures are logged and skipped: one stuck item must not block the
// rest of the cleanup.
func (c *Coordinator) sweepLocks(ctx context.Context, userID string) {
	items, err := c.locks.LockedBy(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("user", userID).Msg("list locks for disconnect sweep")
		return
	}

	for _, item := range items {
		released, err := c.locks.ReleaseLock(ctx, item.ID, userID)
		if err != nil {
			c.log.Warn().Err(err).
				Str("user", userID).
				Str("task", item.ID).
				Msg("release lock on disconnect")
			continue
		}
		if released {
			c.BroadcastUnlocked(item.ID, userID)
		}
	}
}

// broadcast fans one envelope out to every connected session.
func (c *Coordinator) broadcast(env Envelope) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, conn := range c.sessions {
		c.deliver(conn, env)
	}
}

// deliver performs a non-blocking send. Caller holds at least c.mu.RLock.
func (c *Coordinator) deliver(conn *connection, env Envelope) {
	select {
	case conn.out <- env:
	default:
		c.log.Warn().
			Str("session", conn.ID).
			Str("event", string(env.Event)).
			Msg("event dropped: session buffer full")
		if c.onDrop != nil {
			c.onDrop(conn.ID, env)
		}
	}
}

// presenceLocked computes the deduplicated list. Caller holds c.mu.
func (c *Coordinator) presenceLocked() []UserPayload {
	seen := make(map[string]bool, len(c.sessions))
	users := []UserPayload{}

	for _, id := range c.order {
		conn, ok := c.sessions[id]
		if !ok || seen[conn.UserID] {
			continue
		}
		seen[conn.UserID] = true
		users = append(users, UserPayload{
			UserID:      conn.UserID,
			Username:    conn.Username,
			ConnectedAt: conn.ConnectedAt,
		})
	}

	return users
}
