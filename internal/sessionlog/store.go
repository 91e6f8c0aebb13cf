package sessionlog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    account TEXT NOT NULL,
    username TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT NOT NULL,
    duration_seconds REAL NOT NULL,
    comments INTEGER NOT NULL DEFAULT 0,
    gifts INTEGER NOT NULL DEFAULT 0,
    follows INTEGER NOT NULL DEFAULT 0,
    shares INTEGER NOT NULL DEFAULT 0,
    joins INTEGER NOT NULL DEFAULT 0,
    unknown INTEGER NOT NULL DEFAULT 0,
    video_path TEXT,
    reason TEXT NOT NULL,
    error TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
`

// Store keeps session history in SQLite so summaries survive across runs
// and are queryable from the CLI.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the history database in stateDir.
func OpenStore(stateDir string) (*Store, error) {
	dbPath := filepath.Join(stateDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Record inserts one finalized session summary.
func (s *Store) Record(ctx context.Context, sum Summary) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
            session_id, account, username, started_at, ended_at,
            duration_seconds, comments, gifts, follows, shares, joins,
            unknown, video_path, reason, error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.SessionID,
		sum.Account,
		sum.Username,
		sum.StartedAt.UTC().Format(time.RFC3339Nano),
		sum.EndedAt.UTC().Format(time.RFC3339Nano),
		sum.Duration().Seconds(),
		sum.Comments,
		sum.Gifts,
		sum.Follows,
		sum.Shares,
		sum.Joins,
		sum.Unknown,
		nullableString(sum.VideoPath),
		sum.Reason,
		nullableString(sum.Error),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns the newest summaries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, account, username, started_at, ended_at,
            comments, gifts, follows, shares, joins, unknown,
            COALESCE(video_path, ''), reason, COALESCE(error, '')
         FROM sessions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var started, ended string
		if err := rows.Scan(
			&sum.SessionID, &sum.Account, &sum.Username, &started, &ended,
			&sum.Comments, &sum.Gifts, &sum.Follows, &sum.Shares, &sum.Joins,
			&sum.Unknown, &sum.VideoPath, &sum.Reason, &sum.Error,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

// CountByAccount aggregates recorded session counts per account key.
func (s *Store) CountByAccount(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account, COUNT(*) FROM sessions GROUP BY account`)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var account string
		var count int
		if err := rows.Scan(&account, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[account] = count
	}
	return counts, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
