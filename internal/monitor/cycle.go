package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/control"
	"streamwatch/internal/liveness"
	"streamwatch/internal/logging"
	"streamwatch/internal/recorder"
	"streamwatch/internal/tiktok"
	"streamwatch/internal/watchlist"
)

// runCycle performs one monitoring pass: reload the watchlist if it
// changed, reconcile active sessions against it, probe the idle enabled
// accounts, admit live ones under the cap, and publish the status file.
func (m *Monitor) runCycle(ctx context.Context) {
	m.degraded = false
	m.reloadWatchlist(ctx)
	m.drainTransitions(ctx)

	candidates := m.candidates()
	results := m.prober.Probe(ctx, candidates)
	m.admit(ctx, candidates, results)

	m.logger.Debug("cycle complete",
		logging.Int(logging.FieldCycle, m.cycle),
		logging.Int("probed", len(candidates)),
		logging.Int("active", len(m.sessions)),
		logging.String("recording", strings.Join(m.activeAccounts(), ",")),
	)
	m.writeStatus("monitoring", m.diagnostic)
}

// reloadWatchlist re-reads the watchlist when its modification time moved
// and applies the structural diff to running sessions. A failed reload
// keeps the previous snapshot; the monitor never runs without one.
func (m *Monitor) reloadWatchlist(ctx context.Context) {
	modTime, err := watchlist.ModTime(m.cfg.Paths.Watchlist)
	if err != nil {
		m.logger.Warn("watchlist stat failed; keeping current snapshot", logging.Error(err))
		m.diagnostic = "watchlist unreadable"
		m.degraded = true
		m.reportReloadFailure(ctx, err)
		return
	}
	if modTime.Equal(m.snapshot.ModTime) {
		return
	}

	snap, err := watchlist.Load(m.cfg.Paths.Watchlist)
	if err != nil {
		m.logger.Error("watchlist reload failed; keeping current snapshot", logging.Error(err))
		m.diagnostic = fmt.Sprintf("watchlist reload failed: %v", err)
		m.degraded = true
		m.reportReloadFailure(ctx, err)
		return
	}
	m.reloadNotified = false

	m.overrides.apply(&snap.Settings)
	diff := watchlist.Compute(m.snapshot, snap)
	m.snapshot = snap
	m.resolveOutputDir()
	if diff.Empty() {
		return
	}

	m.logger.Info("watchlist changed",
		logging.Int("added", len(diff.Added)),
		logging.Int("removed", len(diff.Removed)),
		logging.Int("enabled", len(diff.Enabled)),
		logging.Int("disabled", len(diff.Disabled)),
		logging.Int("changed", len(diff.Changed)),
	)
	m.applyDiff(diff)
}

// reportReloadFailure notifies once per outage; the flag resets when a
// reload succeeds again.
func (m *Monitor) reportReloadFailure(ctx context.Context, err error) {
	if m.reloadNotified {
		return
	}
	m.reloadNotified = true
	if nerr := m.notifier.NotifyError(ctx, err, "watchlist reload"); nerr != nil {
		m.logger.Warn("error notification failed", logging.Error(nerr))
	}
}

// applyDiff finalizes sessions whose accounts were removed or disabled.
// Added, enabled, and changed accounts need no action here: they become
// probe candidates naturally on this same cycle. Credential changes for
// an account mid-recording take effect on its next session.
func (m *Monitor) applyDiff(diff watchlist.Diff) {
	for _, key := range diff.Removed {
		if session, ok := m.sessions[key]; ok {
			m.logger.Info("stopping recording for removed account",
				logging.String(logging.FieldAccount, key),
			)
			session.Stop(recorder.ReasonRemoved)
		}
	}
	for _, key := range diff.Disabled {
		if session, ok := m.sessions[key]; ok {
			m.logger.Info("stopping recording for disabled account",
				logging.String(logging.FieldAccount, key),
			)
			session.Stop(recorder.ReasonDisabled)
		}
	}
}

// drainTransitions consumes all pending session reports and removes
// terminal sessions from the active map. Reports can be dropped under
// load, so the map is also swept by polling each session's state.
func (m *Monitor) drainTransitions(ctx context.Context) {
	for {
		select {
		case report := <-m.transitions:
			m.handleTransition(ctx, report)
		default:
			m.sweepTerminal(ctx)
			return
		}
	}
}

func (m *Monitor) handleTransition(ctx context.Context, report recorder.Transition) {
	session, ok := m.sessions[report.Account]
	if !ok || session.ID() != report.SessionID {
		// Stale report from a session already swept out.
		return
	}

	switch report.State {
	case recorder.StateRecording:
		m.announceRecording(ctx, report.Account, session)
	case recorder.StateClosed, recorder.StateFailed:
		m.retireSession(ctx, report.Account, session, report.State, report.Reason)
	}
}

// announceRecording sends the started notification once per session.
func (m *Monitor) announceRecording(ctx context.Context, key string, session *recorder.Session) {
	if m.knownLive[key] {
		return
	}
	m.knownLive[key] = true
	if err := m.notifier.NotifyRecordingStarted(ctx, session.Username()); err != nil {
		m.logger.Warn("recording notification failed", logging.Error(err))
	}
}

// sweepTerminal catches sessions whose transition reports were dropped:
// it announces recordings the channel never delivered and retires sessions
// that already converged. Done() is non-blocking here; sessions still in
// flight stay put.
func (m *Monitor) sweepTerminal(ctx context.Context) {
	for key, session := range m.sessions {
		if session.Started() {
			m.announceRecording(ctx, key, session)
		}
		select {
		case <-session.Done():
			m.retireSession(ctx, key, session, session.State(), session.Reason())
		default:
		}
	}
}

func (m *Monitor) retireSession(ctx context.Context, key string, session *recorder.Session, state recorder.State, reason string) {
	if _, ok := m.sessions[key]; !ok {
		return
	}
	// The session itself is the source of truth for whether recording ever
	// began; the channel-delivered report may have been dropped. Announce a
	// late start first so started/finished notifications stay paired.
	wasLive := session.Started()
	if wasLive {
		m.announceRecording(ctx, key, session)
	}
	delete(m.sessions, key)
	delete(m.knownLive, key)

	if state == recorder.StateFailed {
		m.logger.Warn("session failed",
			logging.String(logging.FieldAccount, key),
			logging.String(logging.FieldReason, reason),
		)
		return
	}

	if wasLive {
		counters := session.Counters()
		events := counters.Comments + counters.Gifts + counters.Follows + counters.Shares + counters.Joins
		if err := m.notifier.NotifyRecordingFinished(ctx, session.Username(), reason, session.Elapsed(), events); err != nil {
			m.logger.Warn("recording notification failed", logging.Error(err))
		}
	}
}

// resolveOutputDir expands the snapshot's output directory once per load.
// Expansion failures keep the raw value so recordings still land somewhere
// predictable relative to the working directory.
func (m *Monitor) resolveOutputDir() {
	dir, err := config.ExpandPath(m.snapshot.Settings.OutputDirectory)
	if err != nil {
		m.logger.Warn("output directory expansion failed; using raw value",
			logging.String("output_dir", m.snapshot.Settings.OutputDirectory),
			logging.Error(err),
		)
		dir = m.snapshot.Settings.OutputDirectory
	}
	m.outputDir = dir
}

// candidates returns enabled accounts without an active session, in sorted
// key order so admission under the cap is deterministic.
func (m *Monitor) candidates() []liveness.Candidate {
	keys := m.snapshot.EnabledKeys()
	candidates := make([]liveness.Candidate, 0, len(keys))
	for _, key := range keys {
		if _, active := m.sessions[key]; active {
			continue
		}
		creds := m.snapshot.CredentialsFor(key)
		candidates = append(candidates, liveness.Candidate{
			Key:      key,
			Username: m.snapshot.Accounts[key].Username,
			Options: tiktok.ConnectOptions{
				SessionID: creds.SessionID,
				TargetIDC: creds.TargetIDC,
			},
		})
	}
	return candidates
}

// admit starts sessions for live candidates while the active count stays
// under the configured cap. Candidates arrive sorted by key, so the same
// accounts win ties across cycles. Live accounts deferred by the cap stay
// candidates and are reconsidered next cycle.
func (m *Monitor) admit(ctx context.Context, candidates []liveness.Candidate, results map[string]liveness.Status) {
	limit := m.snapshot.Settings.MaxConcurrentRecordings
	var deferred, unknown []string

	for _, candidate := range candidates {
		switch results[candidate.Key] {
		case liveness.StatusLive:
			if len(m.sessions) >= limit {
				deferred = append(deferred, candidate.Key)
				continue
			}
			m.startSession(ctx, candidate)
		case liveness.StatusUnknown:
			unknown = append(unknown, candidate.Key)
		}
	}

	var notes []string
	if len(deferred) > 0 {
		m.logger.Info("live accounts deferred by concurrency cap",
			logging.Int("cap", limit),
			logging.String("accounts", strings.Join(deferred, ",")),
		)
		notes = append(notes, fmt.Sprintf("at capacity; deferred: %s", strings.Join(deferred, ",")))
	}
	if len(unknown) > 0 {
		m.logger.Warn("liveness unknown for some accounts",
			logging.Int("count", len(unknown)),
			logging.String("accounts", strings.Join(unknown, ",")),
		)
		notes = append(notes, fmt.Sprintf("liveness unknown: %s", strings.Join(unknown, ",")))
	}
	if len(notes) > 0 {
		if m.diagnostic != "" {
			notes = append([]string{m.diagnostic}, notes...)
		}
		m.diagnostic = strings.Join(notes, "; ")
	}
}

func (m *Monitor) startSession(ctx context.Context, candidate liveness.Candidate) {
	account := m.snapshot.Accounts[candidate.Key]
	session := recorder.New(recorder.Options{
		Account:         candidate.Key,
		Username:        account.Username,
		Tags:            account.Tags,
		Notes:           account.Notes,
		OutputDir:       m.outputDir,
		Client:          m.client,
		ConnectOptions:  candidate.Options,
		Journal:         m.journal,
		Logger:          m.logger,
		ConnectTimeout:  time.Duration(m.cfg.Monitor.ConnectTimeout) * time.Second,
		FinalizeTimeout: time.Duration(m.cfg.Monitor.FinalizeTimeout) * time.Second,
		Transitions:     m.transitions,
	})

	m.sessions[candidate.Key] = session
	session.Start(ctx)
	m.logger.Info("account is live; starting recording",
		logging.String(logging.FieldAccount, candidate.Key),
		logging.String(logging.FieldSessionID, session.ID()),
		logging.Int("active", len(m.sessions)),
	)
}

func (m *Monitor) writeStatus(status, extra string) {
	rec := control.Record{
		Status:             status,
		ActiveRecordings:   len(m.sessions),
		CurrentlyRecording: m.activeAccounts(),
		ExtraInfo:          extra,
	}
	if err := m.control.WriteStatus(rec); err != nil {
		m.logger.Warn("status write failed", logging.Error(err))
	}
}

// shutdown stops every active session and waits for each to converge, then
// publishes a final stopped status. Sessions that fail to converge within
// the drain timeout are logged and abandoned rather than blocking exit.
func (m *Monitor) shutdown(reason string) error {
	m.logger.Info("monitor stopping",
		logging.String(logging.FieldReason, reason),
		logging.Int("active", len(m.sessions)),
	)
	m.writeStatus("stopping", reason)

	for _, session := range m.sessions {
		session.Stop(recorder.ReasonShutdown)
	}

	drainTimeout := time.Duration(m.cfg.Monitor.DrainTimeout) * time.Second
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()

	timedOut := false
	for _, key := range m.activeAccounts() {
		session := m.sessions[key]
		delete(m.sessions, key)

		if !timedOut {
			select {
			case <-session.Done():
				continue
			case <-deadline.C:
				timedOut = true
			}
		}
		// Past the deadline only closed sessions count as drained.
		select {
		case <-session.Done():
		default:
			m.logger.Error("abandoning session that missed the drain timeout",
				logging.String(logging.FieldAccount, key),
				logging.Duration("timeout", drainTimeout),
			)
		}
	}

	// The run context is usually already canceled when shutting down on a
	// signal, so the final notification gets its own deadline.
	notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.notifier.NotifyMonitorStopped(notifyCtx, reason); err != nil {
		m.logger.Warn("stop notification failed", logging.Error(err))
	}

	m.writeStatus("stopped", reason)
	m.logger.Info("monitor stopped", logging.String(logging.FieldReason, reason))
	return nil
}
