// Package recorder owns the lifecycle of a single recording session: the
// Idle→Connecting→Recording→Finalizing→Closed state machine, the per-
// category event sinks, and the video capture. Sessions report transitions
// upward instead of touching orchestrator state.
package recorder
