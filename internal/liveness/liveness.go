package liveness

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"streamwatch/internal/logging"
	"streamwatch/internal/tiktok"
)

// Status is the liveness resolution for one probed account.
type Status int

const (
	// StatusUnknown means the probe errored or timed out. Admission treats
	// it as not live, but it is reported distinctly so systemic
	// connectivity failures stay visible.
	StatusUnknown Status = iota
	StatusNotLive
	StatusLive
)

func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusNotLive:
		return "not_live"
	default:
		return "unknown"
	}
}

// Candidate is one account to probe.
type Candidate struct {
	Key      string
	Username string
	Options  tiktok.ConnectOptions
}

// Prober fans liveness checks out over all candidates concurrently. Probes
// are all issued before any result is awaited; a run over tens of accounts
// completes within roughly one probe timeout rather than their sum.
type Prober struct {
	client  tiktok.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber builds a prober bounded by the per-probe timeout.
func NewProber(client tiktok.Client, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		client:  client,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "liveness"),
	}
}

// Probe resolves every candidate to Live, NotLive, or Unknown. Errors never
// escape; they are logged and folded into StatusUnknown.
func (p *Prober) Probe(ctx context.Context, candidates []Candidate) map[string]Status {
	results := make(map[string]Status, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	type outcome struct {
		key    string
		status Status
	}

	resultCh := make(chan outcome, len(candidates))
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			resultCh <- outcome{key: c.Key, status: p.probeOne(ctx, c)}
		}(candidate)
	}
	wg.Wait()
	close(resultCh)

	for res := range resultCh {
		results[res.key] = res.status
	}
	return results
}

func (p *Prober) probeOne(ctx context.Context, candidate Candidate) Status {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	live, err := p.client.IsLive(probeCtx, candidate.Username, candidate.Options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("liveness probe timed out",
				logging.String(logging.FieldAccount, candidate.Key),
				logging.Duration("timeout", p.timeout),
			)
		} else {
			p.logger.Warn("liveness probe failed",
				logging.String(logging.FieldAccount, candidate.Key),
				logging.Error(err),
			)
		}
		return StatusUnknown
	}

	if live {
		return StatusLive
	}
	return StatusNotLive
}
