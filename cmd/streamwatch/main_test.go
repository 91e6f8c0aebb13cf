package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"streamwatch/internal/control"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	controlDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	controlDir := filepath.Join(base, "control")
	body := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q
control_dir = %q
watchlist = %q
`,
		filepath.Join(base, "state"),
		filepath.Join(base, "logs"),
		controlDir,
		filepath.Join(base, "streamers_config.json"),
	)

	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath, controlDir: controlDir}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStopCommandWritesMarker(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "stop", "--reason", "maintenance window")
	if err != nil {
		t.Fatalf("stop: %v (%s)", err, out)
	}

	data, err := os.ReadFile(filepath.Join(env.controlDir, control.StopMarkerName))
	if err != nil {
		t.Fatalf("stop marker missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "maintenance window" {
		t.Fatalf("marker content = %q", data)
	}
}

func TestPauseCommandValidatesSeconds(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := env.run(t, "pause", "soon"); err == nil {
		t.Fatal("expected error for non-numeric seconds")
	}
	if _, err := env.run(t, "pause", "0"); err == nil {
		t.Fatal("expected error for non-positive seconds")
	}

	out, err := env.run(t, "pause", "90")
	if err != nil {
		t.Fatalf("pause: %v (%s)", err, out)
	}
	data, err := os.ReadFile(filepath.Join(env.controlDir, control.PauseMarkerName))
	if err != nil {
		t.Fatalf("pause marker missing: %v", err)
	}
	if strings.TrimSpace(string(data)) != "90" {
		t.Fatalf("marker content = %q", data)
	}
}

func TestStatusCommandWithoutStatusFile(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "does not appear to have run") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v (%s)", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	// Refuses to clobber without --overwrite.
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when target exists")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
}

func TestSessionsCommandEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v (%s)", err, out)
	}
	if !strings.Contains(out, "No recorded sessions") {
		t.Fatalf("output = %q", out)
	}
}
