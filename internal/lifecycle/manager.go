package lifecycle

import (
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/jonboulle/clockwork"
)

// ZoneBatch is the cycle input for one zone. Failed reports whether the
// zone's fetch failed this cycle; a failed zone contributes no presence
// information, so its warnings keep their last known state.
type ZoneBatch struct {
	Zone   string
	Alerts []domain.Alert
	Failed bool
}

// record is one warning's lifecycle position in the canonical table.
type record struct {
	alert     domain.Alert
	state     domain.LifecycleState
	changedAt time.Time
	endedAt   time.Time // set on entering Expired/Cancelled; drives archival
}

// Manager applies cycle results to the canonical alert table and emits
// lifecycle transitions. It is not safe for concurrent use: the cycle
// driver is its only caller, so exactly one component mutates alert
// state.
type Manager struct {
	records   map[string]*record
	retention time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewManager creates an empty alert table. retention is how long an ended
// warning stays queryable before it is archived out of the table.
func NewManager(retention time.Duration, clock clockwork.Clock, logger *slog.Logger) *Manager {
	return &Manager{
		records:   make(map[string]*record),
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// ApplyCycle ingests one cycle's zone batches, advances every warning's
// lifecycle, and returns the emitted transitions in priority order together
// with the snapshot readers should switch to. The whole call is synchronous
// and in-memory; the returned snapshot is complete before anything observes
// it.
func (m *Manager) ApplyCycle(batches []ZoneBatch) ([]domain.Transition, *domain.Snapshot) {
	now := m.clock.Now()

	incoming := collapseBatches(batches)

	var transitions []domain.Transition
	emit := func(t domain.Transition) { transitions = append(transitions, t) }

	for identity, alert := range incoming {
		m.applyIncoming(identity, alert, now, emit)
	}

	m.expireOverdue(now, emit)
	m.archiveRetired(now)

	slices.SortFunc(transitions, func(a, b domain.Transition) int {
		return domain.CompareAlerts(a.Alert, b.Alert)
	})

	return transitions, m.snapshot(now)
}

// Snapshot builds a read view of the current table without applying any
// changes. Used at startup before the first cycle completes.
func (m *Manager) Snapshot() *domain.Snapshot {
	return m.snapshot(m.clock.Now())
}

// collapseBatches merges successful zone batches into one latest-revision
// payload per identity. A warning spanning several zones arrives once per
// zone; the latest sent revision wins. Failed zones contribute nothing,
// not even absence.
func collapseBatches(batches []ZoneBatch) map[string]domain.Alert {
	incoming := make(map[string]domain.Alert)

	for _, batch := range batches {
		if batch.Failed {
			continue
		}
		for _, alert := range batch.Alerts {
			if prev, ok := incoming[alert.Identity]; !ok || alert.Sent.After(prev.Sent) {
				incoming[alert.Identity] = alert
			}
		}
	}
	return incoming
}

func (m *Manager) applyIncoming(identity string, alert domain.Alert, now time.Time, emit func(domain.Transition)) {
	rec := m.records[identity]

	var prevFingerprint string
	if rec != nil {
		prevFingerprint = rec.alert.Fingerprint
	}

	switch Classify(prevFingerprint, alert) {
	case ClassNew:
		// Dead on arrival: some feeds keep returning warnings briefly past
		// their end time. Never admit one to the table.
		if alert.ExpiredAt(now) {
			m.logger.Debug("ignoring already-expired alert", "identity", identity, "event", alert.Event)
			return
		}
		m.records[identity] = &record{alert: alert, state: domain.StateActive, changedAt: now}
		emit(domain.Transition{Alert: alert, Kind: domain.KindNew, From: domain.StateActive, To: domain.StateActive, OccurredAt: now})
		m.logger.Info("alert new", "identity", identity, "event", alert.Event, "severity", alert.Severity.String())

	case ClassUpdated:
		if rec == nil || !rec.state.Live() {
			// An update for a warning we already ended; treat as new if it
			// is still temporally valid.
			if !alert.ExpiredAt(now) {
				m.records[identity] = &record{alert: alert, state: domain.StateActive, changedAt: now}
				emit(domain.Transition{Alert: alert, Kind: domain.KindNew, From: domain.StateActive, To: domain.StateActive, OccurredAt: now})
			}
			return
		}
		from := rec.state
		rec.alert = alert
		rec.state = domain.StateUpdated
		rec.changedAt = now
		emit(domain.Transition{Alert: alert, Kind: domain.KindUpdate, From: from, To: domain.StateUpdated, OccurredAt: now})
		m.logger.Info("alert updated", "identity", identity, "event", alert.Event)

	case ClassCancelled:
		if rec == nil || !rec.state.Live() {
			return
		}
		from := rec.state
		rec.alert = alert
		rec.state = domain.StateCancelled
		rec.changedAt = now
		rec.endedAt = now
		emit(domain.Transition{Alert: alert, Kind: domain.KindAllClear, From: from, To: domain.StateCancelled, OccurredAt: now})
		m.logger.Info("alert cancelled", "identity", identity, "event", alert.Event)

	case ClassUnchanged:
		// No transition, no notification.
	}
}

// expireOverdue ends live warnings whose own end time has passed. This and
// explicit cancellation are the only paths out of the live states: absence
// from a fetched zone is just a candidate for ending, confirmed by exactly
// this expiry check, and a warning with no end time waits for supersession
// or cancellation. A fetch failure ends nothing.
func (m *Manager) expireOverdue(now time.Time, emit func(domain.Transition)) {
	for identity, rec := range m.records {
		if rec.state.Live() && rec.alert.ExpiredAt(now) {
			m.retire(identity, rec, domain.StateExpired, now, emit)
		}
	}
}

func (m *Manager) retire(identity string, rec *record, to domain.LifecycleState, now time.Time, emit func(domain.Transition)) {
	from := rec.state
	rec.state = to
	rec.changedAt = now
	rec.endedAt = now
	emit(domain.Transition{Alert: rec.alert, Kind: domain.KindAllClear, From: from, To: to, OccurredAt: now})
	m.logger.Info("alert ended", "identity", identity, "event", rec.alert.Event, "state", to.String())
}

// archiveRetired moves ended warnings to Archived once the retention window
// elapses, and prunes archived ones a further retention window later. The
// history log keeps the full record; the in-memory table does not grow
// unboundedly. Archival emits no transition.
func (m *Manager) archiveRetired(now time.Time) {
	for identity, rec := range m.records {
		switch rec.state {
		case domain.StateExpired, domain.StateCancelled:
			if now.Sub(rec.endedAt) >= m.retention {
				rec.state = domain.StateArchived
				rec.changedAt = now
			}
		case domain.StateArchived:
			if now.Sub(rec.changedAt) >= m.retention {
				delete(m.records, identity)
			}
		}
	}
}

func (m *Manager) snapshot(now time.Time) *domain.Snapshot {
	var live []domain.Alert
	all := make(map[string]domain.Alert, len(m.records))
	states := make(map[string]domain.LifecycleState, len(m.records))

	for identity, rec := range m.records {
		all[identity] = rec.alert
		states[identity] = rec.state
		// Non-Actual alerts are retained for audit but never indexed.
		if rec.state.Live() && rec.alert.Status == domain.StatusActual {
			live = append(live, rec.alert)
		}
	}
	slices.SortFunc(live, domain.CompareAlerts)

	return domain.NewSnapshot(now, live, all, states)
}
