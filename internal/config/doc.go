// Package config loads and validates the TOML daemon configuration.
//
// The hot-reloadable account watchlist is handled separately by the
// watchlist package; this package only covers settings that require a
// process restart (paths, bridge endpoint, timings, notifications, logging).
package config
