package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamwatch/internal/control"
	"streamwatch/internal/logging"
)

func newChannel(t *testing.T) (*control.Channel, string) {
	t.Helper()
	dir := t.TempDir()
	return control.NewChannel(dir, 5*time.Minute, logging.NewNop()), dir
}

func TestPollWithoutMarkers(t *testing.T) {
	channel, _ := newChannel(t)
	if action := channel.Poll(); action.Kind != control.ActionNone {
		t.Fatalf("expected no action, got %v", action.Kind)
	}
}

func TestPollConsumesStopMarker(t *testing.T) {
	channel, dir := newChannel(t)
	if err := control.RequestStop(dir, "maintenance"); err != nil {
		t.Fatalf("RequestStop: %v", err)
	}

	action := channel.Poll()
	if action.Kind != control.ActionStop {
		t.Fatalf("expected stop, got %v", action.Kind)
	}
	if action.Reason != "maintenance" {
		t.Fatalf("reason = %q", action.Reason)
	}

	// Marker fires once: it must be deleted on pickup.
	if _, err := os.Stat(filepath.Join(dir, control.StopMarkerName)); !os.IsNotExist(err) {
		t.Fatalf("stop marker still present: %v", err)
	}
	if action := channel.Poll(); action.Kind != control.ActionNone {
		t.Fatalf("second poll should be empty, got %v", action.Kind)
	}
}

func TestPollEmptyStopMarkerGetsDefaultReason(t *testing.T) {
	channel, dir := newChannel(t)
	if err := control.RequestStop(dir, ""); err != nil {
		t.Fatalf("RequestStop: %v", err)
	}

	action := channel.Poll()
	if action.Kind != control.ActionStop || action.Reason == "" {
		t.Fatalf("expected stop with default reason, got %+v", action)
	}
}

func TestPollParsesPauseSeconds(t *testing.T) {
	channel, dir := newChannel(t)
	if err := control.RequestPause(dir, 120); err != nil {
		t.Fatalf("RequestPause: %v", err)
	}

	action := channel.Poll()
	if action.Kind != control.ActionPause {
		t.Fatalf("expected pause, got %v", action.Kind)
	}
	if action.Pause != 2*time.Minute {
		t.Fatalf("pause = %v", action.Pause)
	}
}

func TestPollPauseFallsBackToDefault(t *testing.T) {
	channel, dir := newChannel(t)
	if err := os.WriteFile(filepath.Join(dir, control.PauseMarkerName), []byte("soon"), 0o644); err != nil {
		t.Fatal(err)
	}

	action := channel.Poll()
	if action.Kind != control.ActionPause {
		t.Fatalf("expected pause, got %v", action.Kind)
	}
	if action.Pause != 5*time.Minute {
		t.Fatalf("expected default pause, got %v", action.Pause)
	}
}

func TestPollStopWinsOverPause(t *testing.T) {
	channel, dir := newChannel(t)
	if err := control.RequestPause(dir, 60); err != nil {
		t.Fatal(err)
	}
	if err := control.RequestStop(dir, "now"); err != nil {
		t.Fatal(err)
	}

	if action := channel.Poll(); action.Kind != control.ActionStop {
		t.Fatalf("expected stop to win, got %v", action.Kind)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	channel, dir := newChannel(t)

	rec := control.Record{
		Status:             "monitoring",
		ActiveRecordings:   2,
		CurrentlyRecording: []string{"alpha", "beta"},
		ExtraInfo:          "at capacity",
	}
	if err := channel.WriteStatus(rec); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}

	got, err := control.ReadStatus(filepath.Join(dir, control.StatusFileName))
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.Status != "monitoring" || got.ActiveRecordings != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.CurrentlyRecording) != 2 || got.CurrentlyRecording[0] != "alpha" {
		t.Fatalf("accounts = %v", got.CurrentlyRecording)
	}
	if got.PID == 0 || got.Timestamp.IsZero() {
		t.Fatalf("pid/timestamp not defaulted: %+v", got)
	}

	// No temp file left behind from the atomic write.
	if _, err := os.Stat(filepath.Join(dir, control.StatusFileName+".tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp status file left behind: %v", err)
	}
}

func TestWriteStatusNeverWritesNullAccounts(t *testing.T) {
	channel, dir := newChannel(t)
	if err := channel.WriteStatus(control.Record{Status: "stopped"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, control.StatusFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "" {
		t.Fatal("empty status file")
	}
	got, err := control.ReadStatus(filepath.Join(dir, control.StatusFileName))
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentlyRecording == nil {
		t.Fatal("currently_recording serialized as null")
	}
}
