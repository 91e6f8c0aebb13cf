// Package monitor implements the orchestration loop that drives the whole
// daemon: control polling, watchlist hot-reload, liveness probing, session
// admission under the concurrency cap, and graceful shutdown.
package monitor
