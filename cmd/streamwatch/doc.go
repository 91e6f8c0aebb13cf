// Package main hosts the streamwatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the monitoring loop in the foreground,
// drops stop/pause markers into the control directory of a running monitor,
// renders the status file and session history, and scaffolds configuration.
// It centralizes configuration resolution and logging setup so subcommands
// can focus on user experience instead of wiring.
//
// Keep this package lean: monitoring behavior belongs in the internal
// packages, surfaced here through dedicated commands or flags.
package main
