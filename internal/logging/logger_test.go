package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streamwatch/internal/logging"
)

func TestConsoleFormatHoistsComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	component := logging.NewComponentLogger(logger, "monitor")
	component.Info("cycle complete",
		logging.Int(logging.FieldCycle, 7),
		logging.String(logging.FieldAccount, "alpha"),
	)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, " INFO monitor: cycle complete") {
		t.Fatalf("line = %q", line)
	}
	if !strings.Contains(line, "cycle=7") || !strings.Contains(line, "account=alpha") {
		t.Fatalf("attrs missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component attr not hoisted: %q", line)
	}
}

func TestJSONFormatRenamesCoreKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Warn("slow cycle", logging.Int("elapsed_ms", 900))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "slow cycle" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["level"] != "warn" {
		t.Fatalf("level = %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("ts missing: %v", entry)
	}
	if entry["elapsed_ms"] != float64(900) {
		t.Fatalf("elapsed_ms = %v", entry["elapsed_ms"])
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("quiet")
	logger.Warn("loud")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line leaked past warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	_, err := logging.New(logging.Options{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
