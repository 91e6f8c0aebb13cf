// Package control implements the filesystem control protocol: stop and
// pause markers polled once per orchestrator cycle, and the JSON status
// file overwritten every cycle.
package control
