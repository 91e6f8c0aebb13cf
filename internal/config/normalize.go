package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBridge()
	c.normalizeMonitor()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	// ControlDir intentionally defaults to the working directory.
	if strings.TrimSpace(c.Paths.ControlDir) != "" {
		if c.Paths.ControlDir, err = expandPath(c.Paths.ControlDir); err != nil {
			return fmt.Errorf("paths.control_dir: %w", err)
		}
	} else {
		c.Paths.ControlDir = "."
	}
	if strings.TrimSpace(c.Paths.Watchlist) == "" {
		c.Paths.Watchlist = defaultWatchlist
	}
	if c.Paths.Watchlist, err = expandPath(c.Paths.Watchlist); err != nil {
		return fmt.Errorf("paths.watchlist: %w", err)
	}
	return nil
}

func (c *Config) normalizeBridge() {
	c.Bridge.URL = strings.TrimSpace(strings.TrimRight(c.Bridge.URL, "/"))
	if c.Bridge.URL == "" {
		c.Bridge.URL = defaultBridgeURL
	}
	if c.Bridge.RequestTimeout <= 0 {
		c.Bridge.RequestTimeout = defaultBridgeTimeout
	}
	c.Bridge.SignServer = strings.TrimSpace(c.Bridge.SignServer)
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.ProbeTimeout <= 0 {
		c.Monitor.ProbeTimeout = defaultProbeTimeout
	}
	if c.Monitor.ConnectTimeout <= 0 {
		c.Monitor.ConnectTimeout = defaultConnectTimeout
	}
	if c.Monitor.FinalizeTimeout <= 0 {
		c.Monitor.FinalizeTimeout = defaultFinalizeTimeout
	}
	if c.Monitor.PauseDefaultSeconds <= 0 {
		c.Monitor.PauseDefaultSeconds = defaultPauseSeconds
	}
	if c.Monitor.ErrorRetryInterval <= 0 {
		c.Monitor.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Monitor.DrainTimeout <= 0 {
		c.Monitor.DrainTimeout = defaultDrainTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
