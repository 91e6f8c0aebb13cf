package sessionlog

import (
	"context"
	"log/slog"

	"streamwatch/internal/logging"
)

// Journal fans a session's lifecycle records out to the daily CSV log and,
// when available, the SQLite history store. Recorder goroutines call it
// concurrently; both sinks serialize internally.
type Journal struct {
	csv    *CSVJournal
	store  *Store
	logger *slog.Logger
}

// NewJournal combines the CSV journal with an optional history store.
func NewJournal(csv *CSVJournal, store *Store, logger *slog.Logger) *Journal {
	return &Journal{
		csv:    csv,
		store:  store,
		logger: logging.NewComponentLogger(logger, "sessionlog"),
	}
}

// Started records that a recording began.
func (j *Journal) Started(username string, tags []string, notes string) {
	if err := j.csv.RecordStarted(username, tags, notes); err != nil {
		j.logger.Error("session log append failed", logging.Error(err))
	}
}

// Finished records a finalized session in both sinks. Failures are logged
// and contained; a journal problem never takes a session down with it.
func (j *Journal) Finished(ctx context.Context, sum Summary) {
	if err := j.csv.RecordFinished(sum); err != nil {
		j.logger.Error("session log append failed",
			logging.String(logging.FieldAccount, sum.Account),
			logging.Error(err),
		)
	}
	if j.store != nil {
		if err := j.store.Record(ctx, sum); err != nil {
			j.logger.Error("session history insert failed",
				logging.String(logging.FieldAccount, sum.Account),
				logging.Error(err),
			)
		}
	}
}
