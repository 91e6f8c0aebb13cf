package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamwatch/internal/watchlist"
)

// WatchlistDoc is the on-disk watchlist shape used when seeding test files.
type WatchlistDoc struct {
	Streamers map[string]watchlist.Account `json:"streamers"`
	Settings  watchlist.Settings           `json:"settings"`
}

// NewWatchlistDoc builds a valid watchlist document with the given accounts
// enabled. Output lands in a subdirectory of dir; the interval is one second
// so tests cycle quickly.
func NewWatchlistDoc(dir string, accounts ...string) WatchlistDoc {
	doc := WatchlistDoc{
		Streamers: make(map[string]watchlist.Account, len(accounts)),
		Settings: watchlist.Settings{
			CheckIntervalSeconds:    1,
			MaxConcurrentRecordings: 3,
			OutputDirectory:         filepath.Join(dir, "recordings"),
		},
	}
	for _, account := range accounts {
		doc.Streamers[account] = watchlist.Account{
			Username: "@" + account,
			Enabled:  true,
			Tags:     []string{"test"},
		}
	}
	return doc
}

// WriteWatchlist marshals the document to path. The file's modification
// time is bumped forward on every call so hot-reload checks always see a
// change, even when two writes land within one filesystem timestamp tick.
func WriteWatchlist(t testing.TB, path string, doc WatchlistDoc) {
	t.Helper()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal watchlist: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		next := info.ModTime().Add(time.Second)
		if now := time.Now(); now.After(next) {
			next = now
		}
		if err := os.Chtimes(path, next, next); err != nil {
			t.Fatalf("bump mtime %s: %v", path, err)
		}
	}
}
