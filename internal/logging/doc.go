// Package logging constructs slog loggers for the monitor and provides
// shared attribute helpers and standardized field names.
package logging
