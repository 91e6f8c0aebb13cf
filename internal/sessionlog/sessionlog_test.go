package sessionlog_test

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"streamwatch/internal/sessionlog"
	"streamwatch/internal/testsupport"
)

func sampleSummary(account string, started time.Time) sessionlog.Summary {
	return sessionlog.Summary{
		SessionID: "sess-" + account,
		Account:   account,
		Username:  "@" + account,
		Tags:      []string{"research"},
		Notes:     "note",
		StartedAt: started,
		EndedAt:   started.Add(10 * time.Minute),
		Reason:    "stream_ended",
		VideoPath: "/tmp/" + account + ".mp4",
		Comments:  5,
		Gifts:     2,
		Follows:   1,
		Shares:    1,
		Joins:     7,
	}
}

func TestStoreRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, account := range []string{"alpha", "beta", "alpha"} {
		sum := sampleSummary(account, base.Add(time.Duration(i)*time.Minute))
		sum.SessionID = sum.SessionID + string(rune('0'+i))
		if err := store.Record(ctx, sum); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d", len(recent))
	}
	// Most recent first.
	if !recent[0].StartedAt.After(recent[1].StartedAt) {
		t.Fatalf("not ordered by start: %v then %v", recent[0].StartedAt, recent[1].StartedAt)
	}
	if recent[0].Comments != 5 || recent[0].Joins != 7 {
		t.Fatalf("counters lost in roundtrip: %+v", recent[0])
	}

	counts, err := store.CountByAccount(ctx)
	if err != nil {
		t.Fatalf("CountByAccount: %v", err)
	}
	if counts["alpha"] != 2 || counts["beta"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestStoreRecordsEmptyOptionals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	sum := sampleSummary("alpha", time.Now().Add(-time.Minute))
	sum.VideoPath = ""
	sum.Error = ""
	if err := store.Record(ctx, sum); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recent, err := store.Recent(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent: %v %d", err, len(recent))
	}
	if recent[0].VideoPath != "" || recent[0].Error != "" {
		t.Fatalf("optionals not empty: %+v", recent[0])
	}
}

func TestCSVJournalDailyFile(t *testing.T) {
	dir := t.TempDir()
	journal := sessionlog.NewCSVJournal(dir)

	if err := journal.RecordStarted("@alpha", []string{"a", "b"}, "watch closely"); err != nil {
		t.Fatalf("RecordStarted: %v", err)
	}
	sum := sampleSummary("alpha", time.Now().Add(-30*time.Minute))
	if err := journal.RecordFinished(sum); err != nil {
		t.Fatalf("RecordFinished: %v", err)
	}

	file, err := os.Open(journal.Path(time.Now()))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	header := rows[0]
	if header[0] != "timestamp" || header[2] != "action" || header[12] != "error_message" {
		t.Fatalf("header = %v", header)
	}

	started := rows[1]
	if started[2] != "recording_started" || started[3] != "success" || started[10] != "a;b" {
		t.Fatalf("started row = %v", started)
	}

	finished := rows[2]
	if finished[2] != "recording_stopped_stream_ended" {
		t.Fatalf("finished action = %q", finished[2])
	}
	if finished[4] != "10.00" {
		t.Fatalf("duration minutes = %q", finished[4])
	}
	if finished[5] != "5" || finished[9] != "7" {
		t.Fatalf("counter columns = %v", finished)
	}
}

func TestCSVJournalFailedStatus(t *testing.T) {
	dir := t.TempDir()
	journal := sessionlog.NewCSVJournal(dir)

	sum := sampleSummary("alpha", time.Now().Add(-time.Minute))
	sum.Reason = "io_error"
	sum.Error = "disk full"
	if err := journal.RecordFinished(sum); err != nil {
		t.Fatalf("RecordFinished: %v", err)
	}

	file, err := os.Open(journal.Path(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	row := rows[len(rows)-1]
	if row[3] != "failed" || row[12] != "disk full" {
		t.Fatalf("failed row = %v", row)
	}
}
