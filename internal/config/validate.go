package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBridge(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBridge() error {
	parsed, err := url.Parse(c.Bridge.URL)
	if err != nil {
		return fmt.Errorf("bridge.url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("bridge.url: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("bridge.url must include a host")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	for name, value := range map[string]int{
		"monitor.probe_timeout":         c.Monitor.ProbeTimeout,
		"monitor.connect_timeout":       c.Monitor.ConnectTimeout,
		"monitor.finalize_timeout":      c.Monitor.FinalizeTimeout,
		"monitor.pause_default_seconds": c.Monitor.PauseDefaultSeconds,
		"monitor.error_retry_interval":  c.Monitor.ErrorRetryInterval,
		"monitor.drain_timeout":         c.Monitor.DrainTimeout,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
