// Package sessionlog persists session summaries: an append-only daily CSV
// matching the documented schema plus a SQLite history store queryable from
// the CLI.
package sessionlog
