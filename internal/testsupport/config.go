package testsupport

import (
	"path/filepath"
	"testing"

	"streamwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, shortens the monitor timeouts so tests never
// wait on production durations, and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ControlDir = filepath.Join(base, "control")
	cfgVal.Paths.Watchlist = filepath.Join(base, "streamers_config.json")
	cfgVal.Monitor.ProbeTimeout = 1
	cfgVal.Monitor.ConnectTimeout = 1
	cfgVal.Monitor.FinalizeTimeout = 1
	cfgVal.Monitor.DrainTimeout = 2
	cfgVal.Monitor.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithNtfyTopic enables notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithBridgeURL points the config at a test bridge endpoint.
func WithBridgeURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bridge.URL = url
	}
}

// BaseDir returns the temp directory backing the test config's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
