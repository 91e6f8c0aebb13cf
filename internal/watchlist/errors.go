package watchlist

import "fmt"

// ValidationError reports a malformed or invalid watchlist document. A
// reload that fails with it leaves the orchestrator on its previous
// snapshot; only the very first load treats it as fatal.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("watchlist %s: %s", e.Path, e.Reason)
}
