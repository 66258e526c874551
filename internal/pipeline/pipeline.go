// Package pipeline drives the periodic alert cycle: fetch all zones,
// classify changes, apply lifecycle transitions, publish the new snapshot,
// and hand transitions to the history log, the event stream, and the
// notification dispatcher. One cycle is the atomic unit of observable
// change; readers only ever see the snapshot of a fully committed cycle.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/feed"
	"github.com/couchcryptid/storm-alert-dispatch/internal/lifecycle"
	"github.com/couchcryptid/storm-alert-dispatch/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves per-zone alert batches.
type Fetcher interface {
	FetchZones(ctx context.Context, zones []string) []feed.Result
}

// TransitionLog durably records emitted transitions for history queries.
type TransitionLog interface {
	AppendTransitions(ctx context.Context, transitions []domain.Transition) error
}

// Notifier plans and launches notification delivery for a cycle's
// transitions.
type Notifier interface {
	Dispatch(ctx context.Context, transitions []domain.Transition) []domain.DispatchJob
}

// EventPublisher mirrors transitions onto an external event stream.
// Publishing is fire-and-forget; implementations log their own failures.
type EventPublisher interface {
	PublishTransitions(ctx context.Context, transitions []domain.Transition)
}

// Pipeline owns the cycle loop and the published snapshot.
type Pipeline struct {
	fetcher  Fetcher
	manager  *lifecycle.Manager
	history  TransitionLog
	notifier Notifier
	events   EventPublisher // nil when the event stream is disabled

	zones        []string
	pollInterval time.Duration
	cycleTimeout time.Duration

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	snapshot atomic.Pointer[domain.Snapshot]
	ready    atomic.Bool
}

// New creates a Pipeline. events may be nil.
func New(fetcher Fetcher, manager *lifecycle.Manager, history TransitionLog, notifier Notifier, events EventPublisher,
	zones []string, pollInterval, cycleTimeout time.Duration,
	clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {

	p := &Pipeline{
		fetcher:      fetcher,
		manager:      manager,
		history:      history,
		notifier:     notifier,
		events:       events,
		zones:        zones,
		pollInterval: pollInterval,
		cycleTimeout: cycleTimeout,
		clock:        clock,
		logger:       logger,
		metrics:      metrics,
	}
	// Readers need a snapshot before the first cycle commits.
	p.snapshot.Store(manager.Snapshot())
	return p
}

// Current returns the last committed snapshot. Never blocks behind a cycle
// in progress.
func (p *Pipeline) Current() *domain.Snapshot {
	return p.snapshot.Load()
}

// CheckReadiness returns nil once at least one cycle has fetched at least
// one zone successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful feed cycle yet")
	}
	return nil
}

// Run executes cycles at the poll interval until the context is cancelled.
// The first cycle starts immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"zones", len(p.zones), "poll_interval", p.pollInterval, "cycle_timeout", p.cycleTimeout)

	ticker := p.clock.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full fetch-classify-transition-dispatch pass. The
// write phase (classification through snapshot publication) is synchronous
// and in-memory; only fetches and downstream I/O can block, and both are
// bounded by the cycle deadline.
func (p *Pipeline) RunCycle(ctx context.Context) {
	start := p.clock.Now()

	cycleCtx, cancel := context.WithTimeout(ctx, p.cycleTimeout)
	defer cancel()

	results := p.fetcher.FetchZones(cycleCtx, p.zones)

	batches := make([]lifecycle.ZoneBatch, 0, len(results))
	fetched := 0
	for _, r := range results {
		if r.Err != nil {
			p.metrics.FetchErrors.WithLabelValues(r.Zone).Inc()
			p.logger.Warn("zone fetch failed this cycle, keeping last known state",
				"zone", r.Zone, "error", r.Err)
		} else {
			fetched++
		}
		batches = append(batches, lifecycle.ZoneBatch{Zone: r.Zone, Alerts: r.Alerts, Failed: r.Err != nil})
	}
	if errors.Is(cycleCtx.Err(), context.DeadlineExceeded) {
		p.metrics.CycleDeadline.Inc()
	}
	if fetched == 0 && len(p.zones) > 0 {
		p.logger.Error("all zone fetches failed; alerts keep their last known state")
	}

	// Write phase: single-writer, runs to completion, then the snapshot is
	// swapped in one atomic store.
	transitions, snap := p.manager.ApplyCycle(batches)
	p.snapshot.Store(snap)

	p.metrics.CyclesTotal.Inc()
	p.metrics.AlertsActive.Set(float64(len(snap.Live())))
	for _, t := range transitions {
		p.metrics.Transitions.WithLabelValues(t.Kind.String()).Inc()
	}

	if len(transitions) > 0 {
		if err := p.history.AppendTransitions(cycleCtx, transitions); err != nil {
			p.logger.Error("appending transitions to history failed", "count", len(transitions), "error", err)
		}
		if p.events != nil {
			p.events.PublishTransitions(cycleCtx, transitions)
		}
		p.notifier.Dispatch(cycleCtx, transitions)
	}

	if fetched > 0 {
		p.ready.Store(true)
	}

	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Info("cycle complete",
		"zones_fetched", fetched, "zones_failed", len(p.zones)-fetched,
		"transitions", len(transitions), "active", len(snap.Live()),
		"duration", p.clock.Since(start))
}
