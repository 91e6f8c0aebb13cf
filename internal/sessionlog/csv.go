package sessionlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var csvHeader = []string{
	"timestamp", "username", "action", "status", "duration_minutes",
	"comments_count", "gifts_count", "follows_count", "shares_count",
	"joins_count", "tags", "notes", "error_message",
}

// CSVJournal appends monitoring events to a per-day CSV file
// (monitoring_sessions_YYYYMMDD.csv). One file per run day, header written
// on first use, rows appended in arrival order.
type CSVJournal struct {
	dir string

	mu sync.Mutex
}

// NewCSVJournal writes daily session logs into dir.
func NewCSVJournal(dir string) *CSVJournal {
	return &CSVJournal{dir: dir}
}

// Path returns the journal file for the given day.
func (j *CSVJournal) Path(day time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("monitoring_sessions_%s.csv", day.Format("20060102")))
}

// RecordStarted appends a recording_started row.
func (j *CSVJournal) RecordStarted(username string, tags []string, notes string) error {
	return j.append([]string{
		time.Now().Format(time.RFC3339),
		username,
		"recording_started",
		"success",
		"0",
		"0", "0", "0", "0", "0",
		strings.Join(tags, ";"),
		notes,
		"",
	})
}

// RecordFinished appends a recording_stopped row carrying the final counters.
func (j *CSVJournal) RecordFinished(sum Summary) error {
	status := "success"
	if sum.Error != "" {
		status = "failed"
	}
	minutes := sum.Duration().Minutes()
	return j.append([]string{
		time.Now().Format(time.RFC3339),
		sum.Username,
		"recording_stopped_" + sum.Reason,
		status,
		strconv.FormatFloat(minutes, 'f', 2, 64),
		strconv.Itoa(sum.Comments),
		strconv.Itoa(sum.Gifts),
		strconv.Itoa(sum.Follows),
		strconv.Itoa(sum.Shares),
		strconv.Itoa(sum.Joins),
		strings.Join(sum.Tags, ";"),
		sum.Notes,
		sum.Error,
	})
}

func (j *CSVJournal) append(row []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.Path(time.Now())
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return fmt.Errorf("write session log header: %w", err)
		}
	}
	if err := writer.Write(row); err != nil {
		file.Close()
		return fmt.Errorf("write session log row: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flush session log: %w", err)
	}
	return file.Close()
}
