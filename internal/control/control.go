package control

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"streamwatch/internal/logging"
)

// Well-known marker and status file names inside the control directory.
const (
	StopMarkerName  = "STOP_MONITOR"
	PauseMarkerName = "PAUSE_MONITOR"
	StatusFileName  = "monitor_status.json"
)

// Kind enumerates control actions resolved from the marker files.
type Kind int

const (
	ActionNone Kind = iota
	ActionStop
	ActionPause
)

// Action is the result of one control poll.
type Action struct {
	Kind   Kind
	Reason string
	Pause  time.Duration
}

// Channel polls a directory for stop/pause markers and owns the status
// file. Markers are deleted on pickup so each placement fires at most once;
// concurrent external writers get at-least-once pickup within one poll
// interval and nothing stronger.
type Channel struct {
	dir          string
	pauseDefault time.Duration
	logger       *slog.Logger
}

// NewChannel builds a channel over the given control directory.
func NewChannel(dir string, pauseDefault time.Duration, logger *slog.Logger) *Channel {
	if pauseDefault <= 0 {
		pauseDefault = 5 * time.Minute
	}
	return &Channel{
		dir:          dir,
		pauseDefault: pauseDefault,
		logger:       logging.NewComponentLogger(logger, "control"),
	}
}

// Poll checks the stop marker first, then the pause marker. Stop wins when
// both are present.
func (c *Channel) Poll() Action {
	if reason, ok := c.consume(StopMarkerName); ok {
		if reason == "" {
			reason = "stop requested"
		}
		return Action{Kind: ActionStop, Reason: reason}
	}

	if content, ok := c.consume(PauseMarkerName); ok {
		pause := c.pauseDefault
		if seconds, err := strconv.Atoi(strings.TrimSpace(content)); err == nil && seconds > 0 {
			pause = time.Duration(seconds) * time.Second
		}
		return Action{Kind: ActionPause, Pause: pause}
	}

	return Action{Kind: ActionNone}
}

func (c *Channel) consume(name string) (string, bool) {
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("control marker unreadable", logging.String("marker", name), logging.Error(err))
		}
		return "", false
	}
	if err := os.Remove(path); err != nil {
		c.logger.Warn("control marker not removed; action may repeat", logging.String("marker", name), logging.Error(err))
	}
	return strings.TrimSpace(string(data)), true
}

// StatusPath returns the path of the status file this channel writes.
func (c *Channel) StatusPath() string {
	return filepath.Join(c.dir, StatusFileName)
}

// RequestStop places a stop marker with an optional reason.
func RequestStop(dir, reason string) error {
	return writeMarker(filepath.Join(dir, StopMarkerName), reason)
}

// RequestPause places a pause marker. seconds ≤ 0 leaves the content empty
// so the monitor applies its default pause duration.
func RequestPause(dir string, seconds int) error {
	content := ""
	if seconds > 0 {
		content = strconv.Itoa(seconds)
	}
	return writeMarker(filepath.Join(dir, PauseMarkerName), content)
}

func writeMarker(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write control marker: %w", err)
	}
	return nil
}
