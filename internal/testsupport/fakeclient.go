package testsupport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"streamwatch/internal/tiktok"
)

// FakeConn is a scriptable tiktok.Conn. Tests push events through Emit and
// terminate the stream with End or by closing the event channel.
type FakeConn struct {
	events chan tiktok.Event

	mu        sync.Mutex
	closed    bool
	videoErr  error
	videoData string

	// ClosedCh is closed when the session (or test) closes the connection.
	ClosedCh chan struct{}
}

// NewFakeConn builds a connection with room for a test's worth of events.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		events:   make(chan tiktok.Event, 64),
		ClosedCh: make(chan struct{}),
	}
}

func (c *FakeConn) Events() <-chan tiktok.Event { return c.events }

func (c *FakeConn) Video() (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.videoErr != nil {
		return nil, c.videoErr
	}
	return io.NopCloser(strings.NewReader(c.videoData)), nil
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ClosedCh)
	}
	return nil
}

// Emit delivers one event to the consumer.
func (c *FakeConn) Emit(event tiktok.Event) { c.events <- event }

// End signals a normal broadcast finish.
func (c *FakeConn) End() { c.events <- tiktok.StreamEndEvent{Reason: "ended"} }

// SetVideoError makes Video fail, exercising the events-only fallback.
func (c *FakeConn) SetVideoError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoErr = err
}

// FakeClient is a scriptable tiktok.Client keyed by username.
type FakeClient struct {
	mu          sync.Mutex
	live        map[string]bool
	liveErr     map[string]error
	conns       map[string]*FakeConn
	connectErr  map[string]error
	probeCount  map[string]int
	connectsFor map[string]int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		live:        make(map[string]bool),
		liveErr:     make(map[string]error),
		conns:       make(map[string]*FakeConn),
		connectErr:  make(map[string]error),
		probeCount:  make(map[string]int),
		connectsFor: make(map[string]int),
	}
}

// SetLive scripts the liveness answer for a username.
func (f *FakeClient) SetLive(username string, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[username] = live
}

// SetLiveError makes IsLive fail for a username.
func (f *FakeClient) SetLiveError(username string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveErr[username] = err
}

// SetConn scripts the connection returned for a username.
func (f *FakeClient) SetConn(username string, conn *FakeConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[username] = conn
}

// SetConnectError makes Connect fail for a username.
func (f *FakeClient) SetConnectError(username string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr[username] = err
}

// Probes reports how many times IsLive ran for a username.
func (f *FakeClient) Probes(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCount[username]
}

// Connects reports how many times Connect ran for a username.
func (f *FakeClient) Connects(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectsFor[username]
}

func (f *FakeClient) IsLive(ctx context.Context, username string, opts tiktok.ConnectOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCount[username]++
	if err := f.liveErr[username]; err != nil {
		return false, err
	}
	return f.live[username], nil
}

func (f *FakeClient) Connect(ctx context.Context, username string, opts tiktok.ConnectOptions) (tiktok.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectsFor[username]++
	if err := f.connectErr[username]; err != nil {
		return nil, err
	}
	conn, ok := f.conns[username]
	if !ok {
		return nil, fmt.Errorf("no scripted connection for %s", username)
	}
	return conn, nil
}
