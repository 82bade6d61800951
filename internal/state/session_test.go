// internal/state/session_test.go
package state

import (
	"context"
	"testing"

	"github.com/user/evinav/internal/types"
)

func TestSessionStore(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir)
	ctx := context.Background()

	// Test resolve or create
	key := types.NewSessionKey("telegram", "123", "456")
	sess, err := store.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" {
		t.Error("expected non-empty session ID")
	}
	if sess.Key != key {
		t.Errorf("expected key %s, got %s", key, sess.Key)
	}

	// Test idempotency
	sess2, err := store.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID != sess2.ID {
		t.Error("expected same session ID for same key")
	}
}

func TestSessionStoreLoadUnknownReturnsNil(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	sess, err := store.Load(context.Background(), types.NewSessionID())
	if err != nil {
		t.Fatal(err)
	}
	if sess != nil {
		t.Errorf("expected nil for unknown id, got %+v", sess)
	}
}

func TestSessionStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	ctx := context.Background()

	sess := types.NewSession(types.NewSessionID())
	sess.Profile["postcode"] = "NW1 2BU"
	sess.OnboardingIndex = 4
	sess.TriageState = "severity"
	sess.Append("user", "hello")
	sess.Append("assistant", "hi")

	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("expected stored session")
	}
	if loaded.Profile["postcode"] != "NW1 2BU" {
		t.Errorf("profile lost: %v", loaded.Profile)
	}
	if loaded.OnboardingIndex != 4 {
		t.Errorf("index = %d", loaded.OnboardingIndex)
	}
	if loaded.TriageState != "severity" {
		t.Errorf("triage state = %q", loaded.TriageState)
	}
	if len(loaded.History) != 2 {
		t.Errorf("history length = %d", len(loaded.History))
	}
}

func TestSessionStoreList(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := types.NewSession(types.NewSessionID())
		if err := store.Save(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(infos))
	}
}

func TestSessionStoreResolveSkipsArchived(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	ctx := context.Background()
	key := types.NewSessionKey("telegram", "9", "9")

	sess, err := store.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	sess.Status = types.StatusArchived
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}

	fresh, err := store.ResolveOrCreate(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == sess.ID {
		t.Error("archived session should not be resolved")
	}
}
