package testsupport

import (
	"testing"

	"streamwatch/internal/config"
	"streamwatch/internal/logging"
	"streamwatch/internal/sessionlog"
)

// MustOpenStore opens a sessionlog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessionlog.Store {
	t.Helper()

	store, err := sessionlog.OpenStore(cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("sessionlog.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJournal builds a journal over temp CSV output and the test store. The
// logger is silent; journal failures surface through assertions on the
// files instead. The store is returned alongside so tests can query what
// was persisted.
func NewJournal(t testing.TB, cfg *config.Config) (*sessionlog.Journal, *sessionlog.Store) {
	t.Helper()

	csv := sessionlog.NewCSVJournal(cfg.Paths.LogDir)
	store := MustOpenStore(t, cfg)
	return sessionlog.NewJournal(csv, store, logging.NewNop()), store
}
