// Package liveness probes candidate accounts concurrently to decide which
// are broadcasting. Timed-out or failed probes resolve to unknown and are
// excluded from admission without aborting the cycle.
package liveness
