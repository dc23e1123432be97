package testsupport

import (
	"context"
	"testing"

	"nsac/internal/config"
	"nsac/internal/sessions"
)

// MustOpenStore opens a sessions.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessions.Store {
	t.Helper()

	store, err := sessions.Open(cfg)
	if err != nil {
		t.Fatalf("sessions.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginSession creates a new session for tests using the provided store.
func BeginSession(t testing.TB, store *sessions.Store, root, manifestPath string) *sessions.Session {
	t.Helper()

	session, err := store.Begin(context.Background(), root, manifestPath)
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	return session
}
