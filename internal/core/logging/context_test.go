package logging

import (
	"context"
	"testing"
)

func TestWithSessionID(t *testing.T) {
	ctx := context.Background()
	sessionID := "test-session-123"

	ctx = WithSessionID(ctx, sessionID)
	got := GetSessionID(ctx)

	if got != sessionID {
		t.Errorf("GetSessionID() = %q, want %q", got, sessionID)
	}
}

func TestWithUserID(t *testing.T) {
	ctx := context.Background()
	userID := "test-user-456"

	ctx = WithUserID(ctx, userID)
	got := GetUserID(ctx)

	if got != userID {
		t.Errorf("GetUserID() = %q, want %q", got, userID)
	}
}

func TestGetSessionID_NotPresent(t *testing.T) {
	ctx := context.Background()
	got := GetSessionID(ctx)

	if got != "" {
		t.Errorf("GetSessionID() = %q, want empty string", got)
	}
}

func TestGetUserID_NotPresent(t *testing.T) {
	ctx := context.Background()
	got := GetUserID(ctx)

	if got != "" {
		t.Errorf("GetUserID() = %q, want empty string", got)
	}
}

func TestBothIDs(t *testing.T) {
	ctx := context.Background()
	sessionID := "session-1"
	userID := "user-1"

	ctx = WithSessionID(ctx, sessionID)
	ctx = WithUserID(ctx, userID)

	if got := GetSessionID(ctx); got != sessionID {
		t.Errorf("GetSessionID() = %q, want %q", got, sessionID)
	}

	if got := GetUserID(ctx); got != userID {
		t.Errorf("GetUserID() = %q, want %q", got, userID)
	}
}
