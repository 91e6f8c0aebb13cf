package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamwatch/internal/logging"
)

// BridgeClient talks to a protocol bridge sidecar that owns the actual
// platform wire protocol. The bridge exposes an HTTP liveness endpoint, a
// websocket event stream, and an HTTP video stream per account; this client
// only decodes the documented JSON envelope.
type BridgeClient struct {
	httpBase   string
	wsBase     string
	signServer string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger
}

// BridgeOptions configures a BridgeClient.
type BridgeOptions struct {
	URL            string
	RequestTimeout time.Duration
	SignServer     string
	Logger         *slog.Logger
}

// NewBridgeClient builds a client for the given bridge base URL. Both
// http(s) and ws(s) schemes are accepted; the counterpart scheme is derived.
func NewBridgeClient(opts BridgeOptions) (*BridgeClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("bridge url: %w", err)
	}

	httpScheme, wsScheme := "http", "ws"
	switch parsed.Scheme {
	case "https", "wss":
		httpScheme, wsScheme = "https", "wss"
	case "http", "ws":
	default:
		return nil, fmt.Errorf("bridge url: unsupported scheme %q", parsed.Scheme)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BridgeClient{
		httpBase:   httpScheme + "://" + parsed.Host + parsed.Path,
		wsBase:     wsScheme + "://" + parsed.Host + parsed.Path,
		signServer: strings.TrimSpace(opts.SignServer),
		httpClient: &http.Client{Timeout: timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: timeout},
		logger:     logging.NewComponentLogger(opts.Logger, "bridge"),
	}, nil
}

func (c *BridgeClient) query(opts ConnectOptions) url.Values {
	values := url.Values{}
	if opts.TargetIDC != "" {
		values.Set("tt_target_idc", opts.TargetIDC)
	}
	if c.signServer != "" {
		values.Set("sign_server", c.signServer)
	}
	return values
}

func (c *BridgeClient) header(opts ConnectOptions) http.Header {
	header := http.Header{}
	if opts.SessionID != "" {
		header.Set("X-Session-Id", opts.SessionID)
	}
	return header
}

// IsLive asks the bridge whether the account is broadcasting right now.
func (c *BridgeClient) IsLive(ctx context.Context, username string, opts ConnectOptions) (bool, error) {
	endpoint := fmt.Sprintf("%s/live/%s?%s", c.httpBase, url.PathEscape(cleanUsername(username)), c.query(opts).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header = c.header(opts)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("liveness check %s: %w", username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("liveness check %s: unexpected status %d", username, resp.StatusCode)
	}

	var body struct {
		Live bool `json:"live"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("liveness check %s: decode: %w", username, err)
	}
	return body.Live, nil
}

// Connect attaches to the account's event stream.
func (c *BridgeClient) Connect(ctx context.Context, username string, opts ConnectOptions) (Conn, error) {
	clean := cleanUsername(username)
	endpoint := fmt.Sprintf("%s/stream/%s?%s", c.wsBase, url.PathEscape(clean), c.query(opts).Encode())

	ws, resp, err := c.dialer.DialContext(ctx, endpoint, c.header(opts))
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &ConnectError{Username: username, Err: err}
	}

	conn := &bridgeConn{
		client:   c,
		username: clean,
		opts:     opts,
		ws:       ws,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		logger:   c.logger.With(logging.String(logging.FieldAccount, clean)),
	}
	go conn.readLoop()
	return conn, nil
}

type bridgeConn struct {
	client   *BridgeClient
	username string
	opts     ConnectOptions
	ws       *websocket.Conn
	events   chan Event
	done     chan struct{}
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// envelope is the bridge's wire framing for one event.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *bridgeConn) readLoop() {
	defer close(c.events)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.deliver(StreamEndEvent{Reason: "connection closed"})
			} else {
				c.deliver(StreamErrorEvent{Err: err})
			}
			return
		}

		event, err := decodeEnvelope(payload)
		if err != nil {
			c.logger.Debug("bridge event decode failed", logging.Error(err))
			continue
		}
		if !c.deliver(event) {
			return
		}
		if _, ended := event.(StreamEndEvent); ended {
			return
		}
	}
}

// deliver hands one event to the consumer. Nothing drains the channel after
// the consumer finalizes, so every send also selects on done; Close always
// unblocks the read loop even with the buffer full.
func (c *bridgeConn) deliver(event Event) bool {
	select {
	case c.events <- event:
		return true
	case <-c.done:
		return false
	}
}

func decodeEnvelope(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var target Event
	switch env.Type {
	case "comment":
		target = &CommentEvent{}
	case "gift":
		target = &GiftEvent{}
	case "follow":
		target = &FollowEvent{}
	case "share":
		target = &ShareEvent{}
	case "join":
		target = &JoinEvent{}
	case "stream_end":
		target = &StreamEndEvent{}
	default:
		return UnknownEvent{Type: env.Type}, nil
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", env.Type, err)
		}
	}

	switch ev := target.(type) {
	case *CommentEvent:
		return *ev, nil
	case *GiftEvent:
		return *ev, nil
	case *FollowEvent:
		return *ev, nil
	case *ShareEvent:
		return *ev, nil
	case *JoinEvent:
		return *ev, nil
	case *StreamEndEvent:
		return *ev, nil
	}
	return UnknownEvent{Type: env.Type}, nil
}

func (c *bridgeConn) Events() <-chan Event { return c.events }

// Video opens the raw broadcast byte stream for this account. The returned
// reader stays open until the stream ends or the caller closes it.
func (c *bridgeConn) Video() (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/video/%s?%s", c.client.httpBase, url.PathEscape(c.username), c.client.query(c.opts).Encode())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.client.header(c.opts)

	// No client timeout here: the video stream lives as long as the
	// broadcast. Cancellation happens by closing the body.
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("open video stream %s: %w", c.username, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open video stream %s: unexpected status %d", c.username, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *bridgeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func cleanUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
