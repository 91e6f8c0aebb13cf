package tiktok

import (
	"context"
	"fmt"
	"io"
)

// ConnectOptions carries the per-account session credential and routing
// hint. Empty fields mean the public, unauthenticated path.
type ConnectOptions struct {
	SessionID string
	TargetIDC string
}

// Conn is one attached live stream. Events delivers typed interaction
// events in arrival order until the stream ends or fails; Video exposes the
// raw broadcast bytes for the duration of the connection.
type Conn interface {
	Events() <-chan Event
	Video() (io.ReadCloser, error)
	Close() error
}

// Client is the platform boundary the monitor depends on. How liveness
// checks and event streams are obtained is an implementation detail; the
// orchestration engine only sees this surface.
type Client interface {
	IsLive(ctx context.Context, username string, opts ConnectOptions) (bool, error)
	Connect(ctx context.Context, username string, opts ConnectOptions) (Conn, error)
}

// ConnectError reports a failed connection attempt for one account. The
// account stays eligible and is simply re-polled on a later cycle.
type ConnectError struct {
	Username string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Username, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
