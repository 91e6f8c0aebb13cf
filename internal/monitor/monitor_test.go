package monitor_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/control"
	"streamwatch/internal/logging"
	"streamwatch/internal/monitor"
	"streamwatch/internal/recorder"
	"streamwatch/internal/sessionlog"
	"streamwatch/internal/testsupport"
	"streamwatch/internal/watchlist"
)

type harness struct {
	cfg     *config.Config
	client  *testsupport.FakeClient
	store   *sessionlog.Store
	monitor *monitor.Monitor
	done    chan error
	cancel  context.CancelFunc
}

// newHarness seeds a watchlist with the given enabled accounts, scripts a
// fake client, and starts the monitor loop in the background.
func newHarness(t *testing.T, doc testsupport.WatchlistDoc) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteWatchlist(t, cfg.Paths.Watchlist, doc)

	client := testsupport.NewFakeClient()
	journal, store := testsupport.NewJournal(t, cfg)
	channel := control.NewChannel(cfg.Paths.ControlDir, time.Minute, logging.NewNop())

	mon, err := monitor.New(monitor.Options{
		Config:  cfg,
		Client:  client,
		Control: channel,
		Journal: journal,
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		cfg:     cfg,
		client:  client,
		store:   store,
		monitor: mon,
		done:    make(chan error, 1),
		cancel:  cancel,
	}
	t.Cleanup(cancel)
	go func() {
		h.done <- mon.Run(ctx)
	}()
	return h
}

func (h *harness) statusPath() string {
	return filepath.Join(h.cfg.Paths.ControlDir, control.StatusFileName)
}

// waitStatus polls the status file until the predicate holds.
func (h *harness) waitStatus(t *testing.T, what string, pred func(control.Record) bool) control.Record {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	var last control.Record
	for time.Now().Before(deadline) {
		rec, err := control.ReadStatus(h.statusPath())
		if err == nil {
			last = rec
			if pred(rec) {
				return rec
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last status %+v", what, last)
	return control.Record{}
}

func (h *harness) waitExit(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("monitor did not exit")
		return nil
	}
}

func recordingExactly(accounts ...string) func(control.Record) bool {
	return func(rec control.Record) bool {
		if len(rec.CurrentlyRecording) != len(accounts) {
			return false
		}
		for i, account := range accounts {
			if rec.CurrentlyRecording[i] != account {
				return false
			}
		}
		return true
	}
}

func TestMonitorRecordsLiveAccountAndStopsGracefully(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha", "beta")
	h := newHarness(t, doc)

	conn := testsupport.NewFakeConn()
	h.client.SetConn("@alpha", conn)
	h.client.SetLive("@alpha", true)
	h.client.SetLive("@beta", false)

	h.waitStatus(t, "alpha recording", recordingExactly("alpha"))

	if err := control.RequestStop(h.cfg.Paths.ControlDir, "test stop"); err != nil {
		t.Fatalf("RequestStop: %v", err)
	}
	if err := h.waitExit(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	rec, err := control.ReadStatus(h.statusPath())
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if rec.Status != "stopped" || rec.ActiveRecordings != 0 {
		t.Fatalf("final status = %+v", rec)
	}

	recent, err := h.store.Recent(context.Background(), 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent: %v %d", err, len(recent))
	}
	if recent[0].Reason != recorder.ReasonShutdown {
		t.Fatalf("reason = %q", recent[0].Reason)
	}
}

func TestMonitorHonorsConcurrencyCap(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha", "beta")
	doc.Settings.MaxConcurrentRecordings = 1
	h := newHarness(t, doc)

	alphaConn := testsupport.NewFakeConn()
	betaConn := testsupport.NewFakeConn()
	h.client.SetConn("@alpha", alphaConn)
	h.client.SetConn("@beta", betaConn)
	h.client.SetLive("@alpha", true)
	h.client.SetLive("@beta", true)

	// Sorted key order breaks the tie: alpha wins the only slot.
	h.waitStatus(t, "alpha admitted under cap", recordingExactly("alpha"))
	if got := h.client.Connects("@beta"); got != 0 {
		t.Fatalf("beta connected despite cap: %d", got)
	}

	// When alpha's stream ends the freed slot goes to beta.
	h.client.SetLive("@alpha", false)
	alphaConn.End()
	h.waitStatus(t, "beta admitted after slot freed", recordingExactly("beta"))

	h.cancel()
	if err := h.waitExit(t); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestMonitorStopsRecordingWhenAccountDisabled(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha")
	h := newHarness(t, doc)

	conn := testsupport.NewFakeConn()
	h.client.SetConn("@alpha", conn)
	h.client.SetLive("@alpha", true)
	h.waitStatus(t, "alpha recording", recordingExactly("alpha"))

	disabled := doc
	account := disabled.Streamers["alpha"]
	account.Enabled = false
	disabled.Streamers["alpha"] = account
	testsupport.WriteWatchlist(t, h.cfg.Paths.Watchlist, disabled)

	h.waitStatus(t, "alpha finalized", recordingExactly())

	recent, err := h.store.Recent(context.Background(), 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent: %v %d", err, len(recent))
	}
	if recent[0].Reason != recorder.ReasonDisabled {
		t.Fatalf("reason = %q", recent[0].Reason)
	}

	// The account stays off the probe rotation while disabled.
	probesWhenDisabled := h.client.Probes("@alpha")
	time.Sleep(1500 * time.Millisecond)
	if got := h.client.Probes("@alpha"); got != probesWhenDisabled {
		t.Fatalf("disabled account still probed: %d -> %d", probesWhenDisabled, got)
	}

	h.cancel()
	_ = h.waitExit(t)
}

func TestMonitorPauseSuspendsProbing(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha")
	h := newHarness(t, doc)
	h.client.SetLive("@alpha", false)

	h.waitStatus(t, "monitoring", func(rec control.Record) bool {
		return rec.Status == "monitoring"
	})

	if err := control.RequestPause(h.cfg.Paths.ControlDir, 3); err != nil {
		t.Fatalf("RequestPause: %v", err)
	}
	h.waitStatus(t, "paused", func(rec control.Record) bool {
		return rec.Status == "paused"
	})

	probesAtPause := h.client.Probes("@alpha")
	time.Sleep(time.Second)
	if got := h.client.Probes("@alpha"); got != probesAtPause {
		t.Fatalf("probing continued during pause: %d -> %d", probesAtPause, got)
	}

	h.cancel()
	_ = h.waitExit(t)
}

func TestMonitorSurfacesUnknownLivenessInStatus(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha", "beta")
	h := newHarness(t, doc)

	// alpha's probe errors every cycle; beta is plainly not live.
	h.client.SetLiveError("@alpha", errors.New("bridge unreachable"))
	h.client.SetLive("@beta", false)

	rec := h.waitStatus(t, "unknown account surfaced", func(rec control.Record) bool {
		return rec.Status == "monitoring" && strings.Contains(rec.ExtraInfo, "liveness unknown")
	})
	if !strings.Contains(rec.ExtraInfo, "alpha") {
		t.Fatalf("extra_info = %q, want alpha listed", rec.ExtraInfo)
	}
	if strings.Contains(rec.ExtraInfo, "beta") {
		t.Fatalf("extra_info = %q, beta is not-live, not unknown", rec.ExtraInfo)
	}

	// Unknown is never admitted.
	if got := h.client.Connects("@alpha"); got != 0 {
		t.Fatalf("unknown account connected %d times", got)
	}
	if rec.ActiveRecordings != 0 {
		t.Fatalf("active recordings = %d", rec.ActiveRecordings)
	}

	h.cancel()
	_ = h.waitExit(t)
}

func TestMonitorFirstWatchlistLoadFailureIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteWatchlist(t, cfg.Paths.Watchlist, testsupport.WatchlistDoc{
		Streamers: map[string]watchlist.Account{},
		Settings:  watchlist.Settings{}, // invalid: zero interval
	})

	journal, _ := testsupport.NewJournal(t, cfg)
	channel := control.NewChannel(cfg.Paths.ControlDir, time.Minute, logging.NewNop())
	mon, err := monitor.New(monitor.Options{
		Config:  cfg,
		Client:  testsupport.NewFakeClient(),
		Control: channel,
		Journal: journal,
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}

	if err := mon.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error on first watchlist load")
	}
}

func TestMonitorKeepsLastSnapshotOnBadReload(t *testing.T) {
	doc := testsupport.NewWatchlistDoc(t.TempDir(), "alpha")
	h := newHarness(t, doc)
	h.client.SetLive("@alpha", false)

	h.waitStatus(t, "monitoring", func(rec control.Record) bool {
		return rec.Status == "monitoring"
	})

	// Corrupt the file in place; the monitor must keep probing alpha from
	// the last good snapshot.
	broken := doc
	broken.Settings.CheckIntervalSeconds = 0
	testsupport.WriteWatchlist(t, h.cfg.Paths.Watchlist, broken)

	before := h.client.Probes("@alpha")
	deadline := time.Now().Add(5 * time.Second)
	for h.client.Probes("@alpha") <= before {
		if time.Now().After(deadline) {
			t.Fatal("probing stopped after bad reload")
		}
		time.Sleep(20 * time.Millisecond)
	}

	h.cancel()
	_ = h.waitExit(t)
}
