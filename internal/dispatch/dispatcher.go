// Package dispatch fans lifecycle transitions out to subscribers across
// notification channels, applying preference filters, quiet hours, and
// rolling rate caps before anything leaves the process. Jobs are
// independent: one subscriber's failing channel never blocks another's
// delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrChannelUnavailable marks a transient channel failure worth retrying.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrPermanent marks a delivery failure retries cannot fix (bad
	// address, rejected payload). The job fails immediately.
	ErrPermanent = errors.New("permanent delivery failure")
)

// Message is the channel-independent content of one notification.
type Message struct {
	Alert    domain.Alert
	Kind     domain.TransitionKind
	Priority domain.Priority
}

// Adapter delivers a message to one subscriber over one channel.
type Adapter interface {
	Send(ctx context.Context, sub domain.Subscriber, msg Message) error
}

// SubscriberStore lists the current subscriber set. The dispatcher reads it
// once per cycle; mutation happens elsewhere (the management API).
type SubscriberStore interface {
	List(ctx context.Context) ([]domain.Subscriber, error)
}

// Dispatcher plans and delivers notification jobs for cycle transitions.
type Dispatcher struct {
	store      SubscriberStore
	adapters   map[domain.Channel]Adapter
	limiter    *RateLimiter
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	maxRetries int

	// Deliveries outlive the cycle that planned them; baseCtx is cancelled
	// only when the drain grace period ends.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sem     chan struct{}
}

// New creates a dispatcher with a bounded delivery worker pool.
func New(store SubscriberStore, adapters map[domain.Channel]Adapter, limiter *RateLimiter, workers, maxRetries int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:      store,
		adapters:   adapters,
		limiter:    limiter,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		maxRetries: maxRetries,
		baseCtx:    baseCtx,
		cancel:     cancel,
		sem:        make(chan struct{}, workers),
	}
}

// Dispatch evaluates every transition against every subscriber and launches
// delivery of the passing jobs. It returns all planned jobs, including the
// ones suppressed as Skipped, in planning order (transitions arrive in
// priority order and stay that way). The context only scopes the subscriber
// read; deliveries continue in the background until Drain.
func (d *Dispatcher) Dispatch(ctx context.Context, transitions []domain.Transition) []domain.DispatchJob {
	if len(transitions) == 0 {
		return nil
	}

	subs, err := d.store.List(ctx)
	if err != nil {
		d.logger.Error("listing subscribers failed, no notifications this cycle", "error", err)
		return nil
	}

	var jobs []domain.DispatchJob
	for _, t := range transitions {
		// Exercises, tests, and drafts are tracked for audit but never
		// dispatched.
		if t.Alert.Status != domain.StatusActual {
			continue
		}
		for _, sub := range subs {
			jobs = append(jobs, d.planSubscriber(t, sub)...)
		}
	}
	return jobs
}

// planSubscriber produces this subscriber's jobs for one transition: one
// per enabled channel, each either launched or recorded as Skipped.
func (d *Dispatcher) planSubscriber(t domain.Transition, sub domain.Subscriber) []domain.DispatchJob {
	if !sub.Matches(t.Alert) {
		return nil
	}

	msg := Message{
		Alert:    t.Alert,
		Kind:     t.Kind,
		Priority: domain.MapPriority(t.Alert.Severity, t.Alert.Urgency),
	}
	emergency := t.Alert.IsEmergency()
	quiet := d.inQuietHours(sub)

	var jobs []domain.DispatchJob
	for _, channel := range sub.EnabledChannels() {
		adapter, ok := d.adapters[channel]
		if !ok {
			continue // channel not configured on this deployment
		}

		job := domain.DispatchJob{
			ID:            uuid.NewString(),
			SubscriberID:  sub.ID,
			AlertIdentity: t.Alert.Identity,
			Kind:          t.Kind,
			Channel:       channel,
			Priority:      msg.Priority,
			Outcome:       domain.OutcomePending,
		}

		switch {
		case quiet && !emergency && msg.Priority < domain.PriorityHigh:
			job.Outcome = domain.OutcomeSkipped
			d.metrics.QuietHoursSuppressed.Inc()
			d.metrics.DispatchJobs.WithLabelValues(string(channel), string(job.Outcome)).Inc()
			d.logger.Debug("suppressed by quiet hours", "subscriber", sub.ID, "alert", t.Alert.Identity, "channel", channel)

		case !emergency && !d.limiter.Reserve(sub.ID, sub.Preferences.MaxPerHour, sub.Preferences.MaxPerDay):
			job.Outcome = domain.OutcomeSkipped
			d.metrics.RateLimited.Inc()
			d.metrics.DispatchJobs.WithLabelValues(string(channel), string(job.Outcome)).Inc()
			d.logger.Debug("suppressed by rate cap", "subscriber", sub.ID, "alert", t.Alert.Identity, "channel", channel)

		default:
			d.launch(job, sub, adapter, msg)
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// launch hands a job to the worker pool.
func (d *Dispatcher) launch(job domain.DispatchJob, sub domain.Subscriber, adapter Adapter, msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-d.baseCtx.Done():
			return
		}

		d.deliver(job, sub, adapter, msg)
	}()
}

// deliver attempts the channel with exponential backoff until success, a
// permanent error, or the retry cap.
func (d *Dispatcher) deliver(job domain.DispatchJob, sub domain.Subscriber, adapter Adapter, msg Message) {
	// Exponential backoff: start at 1s, double each retry, cap at 30s.
	backoff := time.Second
	maxBackoff := 30 * time.Second

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(d.baseCtx, backoff) {
				d.finish(job, domain.OutcomeFailed, fmt.Errorf("abandoned during shutdown after %d attempts: %w", attempt, lastErr))
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		start := d.clock.Now()
		err := adapter.Send(d.baseCtx, sub, msg)
		d.metrics.DeliveryDuration.WithLabelValues(string(job.Channel)).Observe(d.clock.Since(start).Seconds())

		if err == nil {
			d.finish(job, domain.OutcomeDelivered, nil)
			return
		}
		lastErr = err
		if errors.Is(err, ErrPermanent) {
			break
		}
		d.logger.Warn("delivery attempt failed",
			"job", job.ID, "channel", job.Channel, "subscriber", sub.ID,
			"attempt", attempt+1, "max", d.maxRetries+1, "error", err)
	}
	d.finish(job, domain.OutcomeFailed, lastErr)
}

func (d *Dispatcher) finish(job domain.DispatchJob, outcome domain.Outcome, err error) {
	d.metrics.DispatchJobs.WithLabelValues(string(job.Channel), string(outcome)).Inc()
	if err != nil {
		d.logger.Error("delivery failed",
			"job", job.ID, "channel", job.Channel, "subscriber", job.SubscriberID,
			"alert", job.AlertIdentity, "error", err)
		return
	}
	d.logger.Info("delivered",
		"job", job.ID, "channel", job.Channel, "subscriber", job.SubscriberID,
		"alert", job.AlertIdentity, "kind", job.Kind.String())
}

// Drain waits for in-flight deliveries up to the context deadline, then
// abandons the remainder. Abandoned jobs are dropped, an accepted
// best-effort trade-off for unpersisted jobs.
func (d *Dispatcher) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("drain deadline reached, abandoning in-flight deliveries")
	}
	d.cancel()
}

func (d *Dispatcher) inQuietHours(sub domain.Subscriber) bool {
	q := sub.Preferences.QuietHours
	return q != nil && q.Contains(d.clock.Now())
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
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
