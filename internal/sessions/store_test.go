package sessions_test

import (
	"context"
	"fmt"
	"testing"

	"nsac/internal/sessions"
	"nsac/internal/testsupport"
)

func TestBeginAndFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	session := testsupport.BeginSession(t, store, "/tmp/env-a", "/tmp/requirements.txt")
	if session.ID == 0 {
		t.Fatal("expected session ID to be assigned")
	}
	if session.SessionID == "" {
		t.Fatal("expected a correlation ID")
	}
	if session.Status != sessions.StatusUninitialized {
		t.Fatalf("expected uninitialized status, got %s", session.Status)
	}

	fetched, err := store.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Root != "/tmp/env-a" {
		t.Fatalf("unexpected fetched session: %#v", fetched)
	}

	found, err := store.FindByRoot(ctx, "/tmp/env-a")
	if err != nil {
		t.Fatalf("FindByRoot failed: %v", err)
	}
	if found == nil || found.ID != session.ID {
		t.Fatalf("expected to find inserted session, got %#v", found)
	}
}

func TestBeginRequiresRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Begin(context.Background(), "", ""); err == nil {
		t.Fatal("expected error when root missing")
	}
}

func TestFindByRootReturnsLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.BeginSession(t, store, "/tmp/env-b", "")
	second := testsupport.BeginSession(t, store, "/tmp/env-b", "")

	found, err := store.FindByRoot(ctx, "/tmp/env-b")
	if err != nil {
		t.Fatalf("FindByRoot failed: %v", err)
	}
	if found == nil || found.ID != second.ID {
		t.Fatalf("expected latest session %d, got %#v", second.ID, found)
	}
}

func TestAdvanceFollowsLifecycleOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	session := testsupport.BeginSession(t, store, "/tmp/env-c", "")

	for _, next := range []sessions.Status{
		sessions.StatusCreated,
		sessions.StatusActivated,
		sessions.StatusDepsInstalled,
	} {
		advanced, err := store.Advance(ctx, session.ID, next)
		if err != nil {
			t.Fatalf("Advance to %s failed: %v", next, err)
		}
		if advanced.Status != next {
			t.Fatalf("expected status %s, got %s", next, advanced.Status)
		}
	}

	if !mustGet(t, store, session.ID).IsComplete() {
		t.Fatal("expected session to be complete")
	}
}

func TestAdvanceRejectsSkippedStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	session := testsupport.BeginSession(t, store, "/tmp/env-d", "")

	cases := []sessions.Status{
		sessions.StatusActivated,
		sessions.StatusDepsInstalled,
		sessions.StatusUninitialized,
	}
	for _, target := range cases {
		if _, err := store.Advance(ctx, session.ID, target); err == nil {
			t.Fatalf("expected transition to %s to be rejected", target)
		}
	}

	if got := mustGet(t, store, session.ID).Status; got != sessions.StatusUninitialized {
		t.Fatalf("rejected transitions must not change status, got %s", got)
	}
}

func TestRecordFailureKeepsStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	session := testsupport.BeginSession(t, store, "/tmp/env-e", "")
	if _, err := store.Advance(ctx, session.ID, sessions.StatusCreated); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if err := store.RecordFailure(ctx, session.ID, "venv module missing"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	got := mustGet(t, store, session.ID)
	if got.Status != sessions.StatusCreated {
		t.Fatalf("failure must not change status, got %s", got.Status)
	}
	if got.ErrorMessage != "venv module missing" {
		t.Fatalf("expected error message to be recorded, got %q", got.ErrorMessage)
	}

	// A later successful advance clears the recorded error.
	advanced, err := store.Advance(ctx, session.ID, sessions.StatusActivated)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if advanced.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", advanced.ErrorMessage)
	}
}

func TestListAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		session := testsupport.BeginSession(t, store, fmt.Sprintf("/tmp/env-%d", i), "")
		if i > 0 {
			if _, err := store.Advance(ctx, session.ID, sessions.StatusCreated); err != nil {
				t.Fatalf("Advance failed: %v", err)
			}
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}

	created, err := store.List(ctx, sessions.StatusCreated)
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created sessions, got %d", len(created))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Created != 2 || stats.Uninitialized != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRemoveAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.BeginSession(t, store, "/tmp/env-x", "")
	testsupport.BeginSession(t, store, "/tmp/env-y", "")

	removed, err := store.Remove(ctx, first.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report success")
	}

	cleared, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 remaining session cleared, got %d", cleared)
	}
}

func mustGet(t *testing.T, store *sessions.Store, id int64) *sessions.Session {
	t.Helper()
	session, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if session == nil {
		t.Fatalf("session %d not found", id)
	}
	return session
}
