// Package watchlist manages the hot-reloadable JSON account configuration:
// loading and validating snapshots, writing the first-run template, and the
// pure diff the orchestrator applies between cycles.
package watchlist
