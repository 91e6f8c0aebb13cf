package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/control"
	"streamwatch/internal/liveness"
	"streamwatch/internal/logging"
	"streamwatch/internal/notifications"
	"streamwatch/internal/recorder"
	"streamwatch/internal/sessionlog"
	"streamwatch/internal/tiktok"
	"streamwatch/internal/watchlist"
)

// Options wires the monitor's collaborators.
type Options struct {
	Config    *config.Config
	Client    tiktok.Client
	Control   *control.Channel
	Journal   *sessionlog.Journal
	Notifier  notifications.Service
	Logger    *slog.Logger
	Overrides Overrides
}

// Overrides are command-line settings that take precedence over the
// watchlist's global settings. They are re-applied on every load, so a hot
// reload cannot undo a flag the operator passed at startup.
type Overrides struct {
	SessionID     string
	TargetIDC     string
	CheckInterval int
	MaxConcurrent int
	OutputDir     string
}

func (o Overrides) apply(settings *watchlist.Settings) {
	if o.SessionID != "" {
		settings.SessionID = o.SessionID
	}
	if o.TargetIDC != "" {
		settings.TargetIDC = o.TargetIDC
	}
	if o.CheckInterval > 0 {
		settings.CheckIntervalSeconds = o.CheckInterval
	}
	if o.MaxConcurrent > 0 {
		settings.MaxConcurrentRecordings = o.MaxConcurrent
	}
	if o.OutputDir != "" {
		settings.OutputDirectory = o.OutputDir
	}
}

// Monitor is the orchestration loop: it polls control signals, hot-reloads
// the watchlist, probes liveness, admits recording sessions under the
// concurrency cap, and paces itself to the configured interval. All shared
// state (the active-session map, counters) is owned by this single loop;
// sessions report transitions through a channel instead of mutating it.
type Monitor struct {
	cfg      *config.Config
	client   tiktok.Client
	control  *control.Channel
	journal  *sessionlog.Journal
	notifier notifications.Service
	prober   *liveness.Prober
	logger   *slog.Logger

	snapshot  *watchlist.Snapshot
	overrides Overrides
	outputDir string

	sessions    map[string]*recorder.Session
	transitions chan recorder.Transition

	cycle          int
	knownLive      map[string]bool
	diagnostic     string
	degraded       bool
	reloadNotified bool
}

// New constructs a monitor. Run drives it.
func New(opts Options) (*Monitor, error) {
	if opts.Config == nil || opts.Client == nil || opts.Control == nil || opts.Journal == nil {
		return nil, fmt.Errorf("monitor requires config, client, control channel, and journal")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}
	return &Monitor{
		cfg:      opts.Config,
		client:   opts.Client,
		control:  opts.Control,
		journal:  opts.Journal,
		notifier: notifier,
		prober: liveness.NewProber(
			opts.Client,
			time.Duration(opts.Config.Monitor.ProbeTimeout)*time.Second,
			opts.Logger,
		),
		logger:      logging.NewComponentLogger(opts.Logger, "monitor"),
		overrides:   opts.Overrides,
		sessions:    make(map[string]*recorder.Session),
		transitions: make(chan recorder.Transition, 256),
		knownLive:   make(map[string]bool),
	}, nil
}

// Run executes the monitoring loop until the context is canceled or a stop
// marker is picked up. Only the very first watchlist load is fatal; every
// later reload failure keeps the last good snapshot.
func (m *Monitor) Run(ctx context.Context) error {
	snap, err := watchlist.Load(m.cfg.Paths.Watchlist)
	if err != nil {
		return fmt.Errorf("initial watchlist load: %w", err)
	}
	m.overrides.apply(&snap.Settings)
	m.snapshot = snap
	m.resolveOutputDir()

	enabled := snap.EnabledKeys()
	m.logger.Info("monitor started",
		logging.Int("streamers", len(enabled)),
		logging.Int("max_concurrent", snap.Settings.MaxConcurrentRecordings),
		logging.Duration("interval", m.interval()),
	)
	if err := m.notifier.NotifyMonitorStarted(ctx, len(enabled)); err != nil {
		m.logger.Warn("start notification failed", logging.Error(err))
	}

	for {
		cycleStart := time.Now()
		m.cycle++
		m.diagnostic = ""

		action := m.control.Poll()
		switch action.Kind {
		case control.ActionStop:
			return m.shutdown(action.Reason)
		case control.ActionPause:
			m.logger.Info("monitor paused",
				logging.Duration("pause", action.Pause),
				logging.Int(logging.FieldCycle, m.cycle),
			)
			m.writeStatus("paused", fmt.Sprintf("paused for %s", action.Pause))
			if !sleepContext(ctx, action.Pause) {
				return m.shutdown("shutdown signal")
			}
			continue
		}
		if ctx.Err() != nil {
			return m.shutdown("shutdown signal")
		}

		m.runCycle(ctx)

		interval := m.interval()
		if m.degraded {
			// A cycle that could not read its inputs backs off on the
			// error retry interval instead of the normal cadence.
			interval = time.Duration(m.cfg.Monitor.ErrorRetryInterval) * time.Second
		}
		elapsed := time.Since(cycleStart)
		if elapsed > interval*8/10 {
			m.logger.Warn("cycle running close to its interval",
				logging.Duration("elapsed", elapsed),
				logging.Duration("interval", interval),
				logging.Int(logging.FieldCycle, m.cycle),
			)
		}
		if !sleepContext(ctx, interval-elapsed) {
			return m.shutdown("shutdown signal")
		}
	}
}

func (m *Monitor) interval() time.Duration {
	return time.Duration(m.snapshot.Settings.CheckIntervalSeconds) * time.Second
}

// activeAccounts returns the keys currently recording or starting, sorted.
func (m *Monitor) activeAccounts() []string {
	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
