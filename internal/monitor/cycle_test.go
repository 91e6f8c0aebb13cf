package monitor

import (
	"context"
	"testing"
	"time"

	"streamwatch/internal/control"
	"streamwatch/internal/logging"
	"streamwatch/internal/recorder"
	"streamwatch/internal/testsupport"
)

type captureNotifier struct {
	started  []string
	finished []string
	reasons  []string
}

func (n *captureNotifier) NotifyMonitorStarted(context.Context, int) error    { return nil }
func (n *captureNotifier) NotifyMonitorStopped(context.Context, string) error { return nil }
func (n *captureNotifier) NotifyError(context.Context, error, string) error   { return nil }
func (n *captureNotifier) TestNotification(context.Context) error             { return nil }

func (n *captureNotifier) NotifyRecordingStarted(_ context.Context, username string) error {
	n.started = append(n.started, username)
	return nil
}

func (n *captureNotifier) NotifyRecordingFinished(_ context.Context, username, reason string, _ time.Duration, _ int) error {
	n.finished = append(n.finished, username)
	n.reasons = append(n.reasons, reason)
	return nil
}

// A session whose transition reports are all dropped must still produce the
// started and finished notifications: the sweep derives both from the
// session's own state rather than from the report stream.
func TestSweepNotifiesWhenReportsDropped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := testsupport.NewFakeClient()
	conn := testsupport.NewFakeConn()
	client.SetConn("@alpha", conn)
	journal, _ := testsupport.NewJournal(t, cfg)
	notifier := &captureNotifier{}

	m, err := New(Options{
		Config:   cfg,
		Client:   client,
		Control:  control.NewChannel(cfg.Paths.ControlDir, time.Minute, logging.NewNop()),
		Journal:  journal,
		Notifier: notifier,
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// No Transitions channel: every report this session emits is dropped.
	session := recorder.New(recorder.Options{
		Account:         "alpha",
		Username:        "@alpha",
		OutputDir:       t.TempDir(),
		Client:          client,
		Journal:         journal,
		Logger:          logging.NewNop(),
		ConnectTimeout:  time.Second,
		FinalizeTimeout: time.Second,
	})
	m.sessions["alpha"] = session
	session.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for !session.Started() {
		if time.Now().After(deadline) {
			t.Fatalf("never reached recording; state=%s", session.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx := context.Background()
	m.drainTransitions(ctx)
	if len(notifier.started) != 1 || notifier.started[0] != "@alpha" {
		t.Fatalf("started notifications = %v", notifier.started)
	}
	if _, active := m.sessions["alpha"]; !active {
		t.Fatal("live session retired prematurely")
	}

	conn.End()
	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not converge; state=%s", session.State())
	}

	m.drainTransitions(ctx)
	if _, active := m.sessions["alpha"]; active {
		t.Fatal("terminal session not retired by sweep")
	}
	if len(notifier.started) != 1 {
		t.Fatalf("started notifications duplicated: %v", notifier.started)
	}
	if len(notifier.finished) != 1 || notifier.finished[0] != "@alpha" {
		t.Fatalf("finished notifications = %v", notifier.finished)
	}
	if notifier.reasons[0] != recorder.ReasonStreamEnded {
		t.Fatalf("reason = %q", notifier.reasons[0])
	}
}
