package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/internal/data/stores"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *stores.MemStore) {
	t.Helper()
	store := stores.NewMemStore()
	return NewCoordinator(store, zerolog.Nop()), store
}

// recv pops the next event off a session channel. Broadcasts land in the
// buffer before the triggering call returns, so the timeout is only a
// guard against test bugs.
func recv(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "session channel closed unexpectedly")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Envelope{}
	}
}

// recvEvent reads events until one with the wanted type arrives.
func recvEvent(t *testing.T, ch <-chan Envelope, want Event) Envelope {
	t.Helper()
	for i := 0; i < 32; i++ {
		env := recv(t, ch)
		if env.Event == want {
			return env
		}
	}
	t.Fatalf("never received %s", want)
	return Envelope{}
}

func TestCoordinator_ConnectReceivesPresenceList(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	id, ch := coord.Connect(Session{UserID: "alice", Username: "Alice"})
	assert.NotEmpty(t, id, "missing session id should be generated")

	env := recv(t, ch)
	assert.Equal(t, EventPresenceList, env.Event)

	list, ok := env.Payload.(PresencePayload)
	require.True(t, ok)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "alice", list.Users[0].UserID)
	assert.Equal(t, "Alice", list.Users[0].Username)
}

func TestCoordinator_ConnectNotifiesOthers(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	_, chA := coord.Connect(Session{ID: "s-a", UserID: "alice"})
	recvEvent(t, chA, EventPresenceList)

	_, chB := coord.Connect(Session{ID: "s-b", UserID: "bob", Username: "Bob"})

	env := recv(t, chA)
	assert.Equal(t, EventUserConnected, env.Event)
	user, ok := env.Payload.(UserPayload)
	require.True(t, ok)
	assert.Equal(t, "bob", user.UserID)

	// The newcomer sees both users, not a user:connected for itself
	env = recv(t, chB)
	assert.Equal(t, EventPresenceList, env.Event)
	list := env.Payload.(PresencePayload)
	assert.Len(t, list.Users, 2)
}

func TestCoordinator_PresenceDedupsByUser(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	coord.Connect(Session{ID: "tab-1", UserID: "alice", Username: "Alice", ConnectedAt: first})
	coord.Connect(Session{ID: "tab-2", UserID: "alice", Username: "Alice (2)"})

	users := coord.Presence()
	require.Len(t, users, 1, "two sessions for one user is one presence entry")
	assert.Equal(t, "Alice", users[0].Username, "first connected session wins")
	assert.Equal(t, first, users[0].ConnectedAt)
	assert.Equal(t, 2, coord.SessionCount())
}

func TestCoordinator_RequestPresence(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	id, ch := coord.Connect(Session{UserID: "alice"})
	recvEvent(t, ch, EventPresenceList)

	coord.RequestPresence(id)

	env := recv(t, ch)
	assert.Equal(t, EventPresenceList, env.Event)

	// Unknown sessions are ignored
	coord.RequestPresence("nope")
}

func TestCoordinator_SiblingDisconnectKeepsLocks(t *testing.T) {
	ctx := context.Background()
	coord, store := newTestCoordinator(t)

	item, err := store.Create(ctx, task.Draft{Title: "held"}, "alice")
	require.NoError(t, err)
	_, err = store.AcquireLock(ctx, item.ID, "alice")
	require.NoError(t, err)

	coord.Connect(Session{ID: "tab-1", UserID: "alice"})
	coord.Connect(Session{ID: "tab-2", UserID: "alice"})
	_, chObs := coord.Connect(Session{ID: "obs", UserID: "bob"})
	recvEvent(t, chObs, EventPresenceList)

	coord.Disconnect(ctx, "tab-1")

	locked, err := store.IsLocked(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, locked, "locks survive while a sibling session remains")

	select {
	case env := <-chObs:
		t.Fatalf("unexpected event after sibling disconnect: %s", env.Event)
	default:
	}
}

func TestCoordinator_FinalDisconnectSweepsLocks(t *testing.T) {
	ctx := context.Background()
	coord, store := newTestCoordinator(t)

	a, err := store.Create(ctx, task.Draft{Title: "a"}, "alice")
	require.NoError(t, err)
	b, err := store.Create(ctx, task.Draft{Title: "b"}, "alice")
	require.NoError(t, err)
	for _, id := range []string{a.ID, b.ID} {
		_, err = store.AcquireLock(ctx, id, "alice")
		require.NoError(t, err)
	}

	_, chA := coord.Connect(Session{ID: "s-a", UserID: "alice"})
	_, chObs := coord.Connect(Session{ID: "obs", UserID: "bob"})
	recvEvent(t, chA, EventPresenceList)
	recvEvent(t, chObs, EventPresenceList)

	coord.Disconnect(ctx, "s-a")

	for _, id := range []string{a.ID, b.ID} {
		locked, err := store.IsLocked(ctx, id)
		require.NoError(t, err)
		assert.False(t, locked, "final disconnect must release the user's locks")
	}

	// Observer sees one unlock per held task, then the departure
	unlocked := map[string]bool{}
	for i := 0; i < 2; i++ {
		env := recvEvent(t, chObs, EventTaskUnlocked)
		payload := env.Payload.(TaskUnlockedPayload)
		assert.Equal(t, "alice", payload.UserID)
		unlocked[payload.TaskID] = true
	}
	assert.Len(t, unlocked, 2)

	env := recvEvent(t, chObs, EventUserDisconnected)
	user := env.Payload.(UserPayload)
	assert.Equal(t, "alice", user.UserID)

	// Departed session's channel is closed
	for range chA {
	}
}

func TestCoordinator_DisconnectUnknownSession(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	require.NotPanics(t, func() {
		coord.Disconnect(context.Background(), "ghost")
	})
}

func TestCoordinator_BroadcastIncludesSender(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	_, chA := coord.Connect(Session{ID: "s-a", UserID: "alice"})
	_, chB := coord.Connect(Session{ID: "s-b", UserID: "bob"})
	recvEvent(t, chA, EventPresenceList)
	recvEvent(t, chB, EventPresenceList)

	item := task.Item{ID: "t-1", Title: "announce"}
	coord.BroadcastCreated(item, "alice", "Alice")

	for _, ch := range []<-chan Envelope{chA, chB} {
		env := recvEvent(t, ch, EventTaskCreated)
		payload := env.Payload.(TaskPayload)
		assert.Equal(t, "t-1", payload.Item.ID)
		assert.Equal(t, "alice", payload.UserID)
		assert.False(t, payload.Timestamp.IsZero())
	}
}

func TestCoordinator_SlowReceiverDropsNotBlocks(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.buffer = 1

	var dropped []string
	coord.OnDrop(func(sessionID string, env Envelope) {
		dropped = append(dropped, string(env.Event))
	})

	_, ch := coord.Connect(Session{ID: "slow", UserID: "alice"})
	// presence:list already fills the single slot; these must not block
	done := make(chan struct{})
	go func() {
		coord.BroadcastUpdated(task.Item{ID: "t-1"}, "bob", "Bob")
		coord.BroadcastUpdated(task.Item{ID: "t-2"}, "bob", "Bob")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full session buffer")
	}

	assert.Equal(t, []string{string(EventTaskUpdated), string(EventTaskUpdated)}, dropped)

	// The buffered event is still intact
	env := recv(t, ch)
	assert.Equal(t, EventPresenceList, env.Event)
}

type failingSweeper struct {
	listErr    error
	releaseErr error
	store      *stores.MemStore
}

func (f *failingSweeper) LockedBy(ctx context.Context, userID string) ([]task.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.store.LockedBy(ctx, userID)
}

func (f *failingSweeper) ReleaseLock(ctx context.Context, id, userID string) (bool, error) {
	if f.releaseErr != nil {
		return false, f.releaseErr
	}
	return f.store.ReleaseLock(ctx, id, userID)
}

func TestCoordinator_SweepFailuresDoNotPanic(t *testing.T) {
	ctx := context.Background()
	sweeper := &failingSweeper{listErr: errors.New("store down"), store: stores.NewMemStore()}
	coord := NewCoordinator(sweeper, zerolog.Nop())

	coord.Connect(Session{ID: "s-a", UserID: "alice"})
	_, chObs := coord.Connect(Session{ID: "obs", UserID: "bob"})
	recvEvent(t, chObs, EventPresenceList)

	require.NotPanics(t, func() {
		coord.Disconnect(ctx, "s-a")
	})

	// Sweep failed but the departure is still announced
	env := recvEvent(t, chObs, EventUserDisconnected)
	assert.Equal(t, "alice", env.Payload.(UserPayload).UserID)
}
