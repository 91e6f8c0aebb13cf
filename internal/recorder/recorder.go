package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamwatch/internal/logging"
	"streamwatch/internal/sessionlog"
	"streamwatch/internal/tiktok"
)

// State tags the session lifecycle. Sessions move Idle → Connecting →
// Recording → Finalizing → Closed; Failed is terminal out of Connecting.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// Terminal reasons recorded in the session journal and status reporting.
const (
	ReasonStreamEnded   = "stream_ended"
	ReasonStreamError   = "stream_error"
	ReasonIOError       = "io_error"
	ReasonDisabled      = "disabled via config"
	ReasonRemoved       = "removed from config"
	ReasonShutdown      = "shutdown"
	ReasonConnectFailed = "connect_failed"
)

// Counters tracks per-category event totals for one session.
type Counters struct {
	Comments int
	Gifts    int
	Follows  int
	Shares   int
	Joins    int
	Unknown  int
}

// Transition is a state report sent upward to the orchestrator. Sessions
// never mutate shared orchestrator state directly.
type Transition struct {
	Account   string
	SessionID string
	State     State
	Reason    string
	Err       error
}

// Options configures one recording session.
type Options struct {
	Account        string
	Username       string
	Tags           []string
	Notes          string
	OutputDir      string
	Client         tiktok.Client
	ConnectOptions tiktok.ConnectOptions
	Journal        *sessionlog.Journal
	Logger         *slog.Logger

	ConnectTimeout  time.Duration
	FinalizeTimeout time.Duration

	// Transitions receives state reports. Sends never block the session;
	// if the orchestrator falls behind, reports are dropped and the
	// orchestrator falls back to polling State().
	Transitions chan<- Transition
}

// Session owns the complete lifecycle of one recording: connecting,
// routing events into sinks, and finalizing on stream end, error, or a
// forced stop.
type Session struct {
	opts   Options
	id     string
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	counters  Counters
	reason    string
	err       error
	startedAt time.Time
	endedAt   time.Time

	stopOnce sync.Once
	stopCh   chan string
	done     chan struct{}
}

// New builds an idle session. Start launches it.
func New(opts Options) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = 15 * time.Second
	}
	id := uuid.NewString()
	logger := logging.NewComponentLogger(opts.Logger, "recorder").With(
		logging.String(logging.FieldAccount, opts.Account),
		logging.String(logging.FieldSessionID, id),
	)
	return &Session{
		opts:   opts,
		id:     id,
		logger: logger,
		state:  StateIdle,
		stopCh: make(chan string, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// Account returns the account key this session records.
func (s *Session) Account() string { return s.opts.Account }

// Username returns the display handle being recorded.
func (s *Session) Username() string { return s.opts.Username }

// Started reports whether the session ever reached Recording. It stays
// true after the session closes.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.startedAt.IsZero()
}

// Elapsed returns the recording duration so far, or the final duration
// once the session has closed. Zero until the connection succeeds.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.startedAt.IsZero():
		return 0
	case !s.endedAt.IsZero():
		return s.endedAt.Sub(s.startedAt)
	default:
		return time.Since(s.startedAt)
	}
}

// Reason returns the terminal reason, or "" while none is set.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns a copy of the per-category totals.
func (s *Session) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Done is closed once the session reaches Closed or Failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop requests the Finalizing transition. Safe to call at any point and
// more than once; the first reason wins. The session converges to Closed
// within the finalize timeout even if the platform client is unresponsive.
func (s *Session) Stop(reason string) {
	s.stopOnce.Do(func() {
		s.stopCh <- reason
	})
}

// Start launches the session goroutine. The ctx bounds the whole session;
// cancellation behaves like Stop with a shutdown reason.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	s.setState(StateConnecting, "", nil)

	connectCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	conn, err := s.opts.Client.Connect(connectCtx, s.opts.Username, s.opts.ConnectOptions)
	cancel()
	if err != nil {
		s.logger.Warn("connect failed; will retry on a later cycle", logging.Error(err))
		s.setState(StateFailed, ReasonConnectFailed, err)
		return
	}

	startedAt := time.Now()
	s.mu.Lock()
	s.startedAt = startedAt
	s.mu.Unlock()

	sinks, err := openSinks(s.opts.OutputDir, s.opts.Account, startedAt)
	if err != nil {
		_ = conn.Close()
		s.logger.Error("open sinks failed", logging.Error(err))
		s.setState(StateFailed, ReasonIOError, err)
		return
	}

	sinks.startVideo(conn, s.logger)

	s.setState(StateRecording, "", nil)
	s.opts.Journal.Started(s.opts.Username, s.opts.Tags, s.opts.Notes)
	s.logger.Info("recording started",
		logging.String("stem", sinks.stem),
		logging.String("video", sinks.videoPath),
	)

	reason, streamErr := s.consume(ctx, conn, sinks)
	s.finalize(conn, sinks, reason, streamErr)
}

// consume is the Recording state: a loop over the inbound event channel,
// interrupted by a stop request or context cancellation.
func (s *Session) consume(ctx context.Context, conn tiktok.Conn, sinks *sessionSinks) (string, error) {
	for {
		select {
		case reason := <-s.stopCh:
			return reason, nil
		case <-ctx.Done():
			return ReasonShutdown, nil
		case event, ok := <-conn.Events():
			if !ok {
				return ReasonStreamError, errors.New("event stream closed unexpectedly")
			}
			switch ev := event.(type) {
			case tiktok.StreamEndEvent:
				return ReasonStreamEnded, nil
			case tiktok.StreamErrorEvent:
				return ReasonStreamError, ev.Err
			case tiktok.UnknownEvent:
				s.bumpCounter(categoryUnknown)
				s.logger.Debug("unrecognized event ignored",
					logging.String(logging.FieldEventType, ev.Type),
				)
			default:
				category, err := sinks.route(event)
				s.bumpCounter(category)
				if err != nil {
					s.logger.Error("event sink write failed", logging.Error(err))
					return ReasonIOError, err
				}
			}
		}
	}
}

func (s *Session) finalize(conn tiktok.Conn, sinks *sessionSinks, reason string, cause error) {
	s.setState(StateFinalizing, reason, cause)

	// Closing the connection and flushing sinks must converge in bounded
	// time even when the client hangs; past the timeout the files are
	// force-closed and the stall is logged instead of blocking shutdown.
	settled := make(chan error, 1)
	go func() {
		connErr := conn.Close()
		sinkErr := sinks.closeAll()
		settled <- errors.Join(connErr, sinkErr)
	}()

	select {
	case err := <-settled:
		if err != nil {
			s.logger.Warn("finalize completed with errors", logging.Error(err))
		}
	case <-time.After(s.opts.FinalizeTimeout):
		sinks.forceClose()
		s.logger.Error("finalize timed out; resources force-closed",
			logging.Duration("timeout", s.opts.FinalizeTimeout),
			logging.String(logging.FieldReason, reason),
		)
	}

	endedAt := time.Now()
	s.mu.Lock()
	s.endedAt = endedAt
	startedAt := s.startedAt
	counters := s.counters
	s.mu.Unlock()

	summary := sessionlog.Summary{
		SessionID: s.id,
		Account:   s.opts.Account,
		Username:  s.opts.Username,
		Tags:      s.opts.Tags,
		Notes:     s.opts.Notes,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Reason:    reason,
		VideoPath: sinks.videoPath,
		Comments:  counters.Comments,
		Gifts:     counters.Gifts,
		Follows:   counters.Follows,
		Shares:    counters.Shares,
		Joins:     counters.Joins,
		Unknown:   counters.Unknown,
	}
	if cause != nil {
		summary.Error = cause.Error()
	}
	// The run context is already canceled when finalize follows a shutdown
	// or stop, so persisting the summary gets its own deadline.
	journalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.opts.Journal.Finished(journalCtx, summary)

	s.logger.Info("recording stopped",
		logging.String(logging.FieldReason, reason),
		logging.Duration("duration", endedAt.Sub(startedAt)),
		logging.Int("comments", counters.Comments),
		logging.Int("gifts", counters.Gifts),
		logging.Int("follows", counters.Follows),
		logging.Int("shares", counters.Shares),
		logging.Int("joins", counters.Joins),
	)

	s.setState(StateClosed, reason, cause)
}

func (s *Session) bumpCounter(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch category {
	case categoryComments:
		s.counters.Comments++
	case categoryGifts:
		s.counters.Gifts++
	case categoryFollows:
		s.counters.Follows++
	case categoryShares:
		s.counters.Shares++
	case categoryJoins:
		s.counters.Joins++
	default:
		s.counters.Unknown++
	}
}

func (s *Session) setState(state State, reason string, err error) {
	s.mu.Lock()
	s.state = state
	if reason != "" {
		s.reason = reason
	}
	if err != nil {
		s.err = err
	}
	s.mu.Unlock()

	if s.opts.Transitions == nil {
		return
	}
	report := Transition{
		Account:   s.opts.Account,
		SessionID: s.id,
		State:     state,
		Reason:    reason,
		Err:       err,
	}
	select {
	case s.opts.Transitions <- report:
	default:
		s.logger.Debug("transition report dropped", logging.String("state", string(state)))
	}
}
