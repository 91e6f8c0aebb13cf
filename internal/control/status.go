package control

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Record is the ephemeral per-cycle status snapshot. The file is overwritten
// every cycle; no history is kept here.
type Record struct {
	Timestamp          time.Time `json:"timestamp"`
	Status             string    `json:"status"`
	ActiveRecordings   int       `json:"active_recordings"`
	CurrentlyRecording []string  `json:"currently_recording"`
	ExtraInfo          string    `json:"extra_info"`
	PID                int       `json:"pid"`
}

// WriteStatus overwrites the status file with the given record. The write
// goes through a temp file and rename so external readers never observe a
// partially written document.
func (c *Channel) WriteStatus(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.PID == 0 {
		rec.PID = os.Getpid()
	}
	if rec.CurrentlyRecording == nil {
		rec.CurrentlyRecording = []string{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	data = append(data, '\n')

	path := c.StatusPath()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// ReadStatus loads a status file written by a running monitor.
func ReadStatus(path string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse status: %w", err)
	}
	return rec, nil
}
