package lifecycle_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/lifecycle"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cycleStart = time.Date(2026, time.April, 3, 18, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, retention time.Duration) (*lifecycle.Manager, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(cycleStart)
	return lifecycle.NewManager(retention, clock, slog.Default()), clock
}

// tornado builds a live tornado warning valid for the given duration from
// cycleStart.
func tornado(validFor time.Duration) domain.Alert {
	a := domain.Alert{
		Event:     "Tornado Warning",
		Headline:  "Tornado Warning for Collin County",
		Severity:  domain.SeverityExtreme,
		Urgency:   domain.UrgencyImmediate,
		Certainty: domain.CertaintyObserved,
		Status:    domain.StatusActual,
		Sent:      cycleStart,
		Effective: cycleStart,
		Expires:   cycleStart.Add(validFor),
		ZoneCodes: []string{"TXZ159"},
		Sender:    "w-nws.webmaster@noaa.gov",
	}
	a.Identity = domain.Identity(a.Sender, a.ZoneCodes, a.Event)
	a.Fingerprint = domain.Fingerprint(a)
	return a
}

func batch(zone string, alerts ...domain.Alert) lifecycle.ZoneBatch {
	return lifecycle.ZoneBatch{Zone: zone, Alerts: alerts}
}

func failedBatch(zone string) lifecycle.ZoneBatch {
	return lifecycle.ZoneBatch{Zone: zone, Failed: true}
}

func TestApplyCycle_NewAlert(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	alert := tornado(45 * time.Minute)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	require.Len(t, transitions, 1)
	assert.Equal(t, domain.KindNew, transitions[0].Kind)
	assert.Equal(t, domain.StateActive, transitions[0].To)
	assert.Equal(t, alert.Identity, transitions[0].Alert.Identity)

	require.Len(t, snap.Live(), 1)
	got, err := snap.ByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, alert.Identity, got.Identity)
}

func TestApplyCycle_UnchangedEmitsNothing(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)

	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	assert.Empty(t, transitions, "re-seeing the same revision is not a change")
	assert.Len(t, snap.Live(), 1)
}

func TestApplyCycle_UpdateEmitsOnce(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	updated := alert
	updated.Headline = "Tornado Warning extended for Collin County"
	updated.Expires = cycleStart.Add(90 * time.Minute)
	updated.Sent = cycleStart.Add(10 * time.Minute)
	updated.Fingerprint = domain.Fingerprint(updated)

	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", updated)})

	require.Len(t, transitions, 1)
	assert.Equal(t, domain.KindUpdate, transitions[0].Kind)
	assert.Equal(t, domain.StateActive, transitions[0].From)
	assert.Equal(t, domain.StateUpdated, transitions[0].To)
	assert.Equal(t, updated.Headline, snap.Live()[0].Headline, "snapshot carries the new content")
}

func TestApplyCycle_MultiZoneWarningIsOneAlert(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	alert := tornado(45 * time.Minute)
	alert.ZoneCodes = []string{"TXZ159", "TXZ160"}
	alert.Identity = domain.Identity(alert.Sender, alert.ZoneCodes, alert.Event)

	newer := alert
	newer.Sent = cycleStart.Add(5 * time.Minute)
	newer.Headline = "Tornado Warning extended"
	newer.Fingerprint = domain.Fingerprint(newer)

	// The same warning arrives via both zones, one zone serving a newer
	// revision.
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{
		batch("TXZ159", alert),
		batch("TXZ160", newer),
	})

	require.Len(t, transitions, 1, "one warning, one transition")
	assert.Len(t, snap.Live(), 1)
	assert.Equal(t, "Tornado Warning extended", snap.Live()[0].Headline, "latest sent revision wins")
}

func TestApplyCycle_ExpiryByOwnClock(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	// Still within validity: absence from the zone does not end it.
	clock.Advance(20 * time.Minute)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})
	assert.Empty(t, transitions, "absence of a still-valid warning is not an all-clear")
	assert.Len(t, snap.Live(), 1)

	// Past its own end time: expires regardless of feed contents.
	clock.Advance(30 * time.Minute)
	transitions, snap = m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.KindAllClear, transitions[0].Kind)
	assert.Equal(t, domain.StateExpired, transitions[0].To)
	assert.Empty(t, snap.Live())

	// Ended alerts stay queryable by identity until archived.
	_, state, err := snap.ByIdentity(alert.Identity)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExpired, state)
}

func TestApplyCycle_FetchFailurePreservesState(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	clock.Advance(5 * time.Minute)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{failedBatch("TXZ159")})

	assert.Empty(t, transitions)
	assert.Len(t, snap.Live(), 1, "a failed fetch reports nothing, so nothing changes")
}

func TestApplyCycle_ExpiryRunsEvenWhenAllFetchesFail(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	clock.Advance(time.Hour)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{failedBatch("TXZ159")})

	require.Len(t, transitions, 1, "expiry follows the alert's own clock, not feed availability")
	assert.Equal(t, domain.StateExpired, transitions[0].To)
	assert.Empty(t, snap.Live())
}

func TestApplyCycle_Cancellation(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	clock.Advance(10 * time.Minute)
	cancel := alert
	cancel.MessageType = domain.MessageCancel
	cancel.Sent = cycleStart.Add(10 * time.Minute)
	cancel.Fingerprint = domain.Fingerprint(cancel)

	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", cancel)})

	require.Len(t, transitions, 1)
	assert.Equal(t, domain.KindAllClear, transitions[0].Kind)
	assert.Equal(t, domain.StateCancelled, transitions[0].To)
	assert.Empty(t, snap.Live())

	// A repeated cancel for an already-ended warning emits nothing.
	transitions, _ = m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", cancel)})
	assert.Empty(t, transitions)
}

func TestApplyCycle_DeadOnArrivalNeverAdmitted(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(45 * time.Minute)

	clock.Advance(2 * time.Hour)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	assert.Empty(t, transitions, "feeds can keep returning warnings briefly past their end")
	assert.Empty(t, snap.Live())
	_, _, err := snap.ByIdentity(alert.Identity)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyCycle_ArchivalAndPruning(t *testing.T) {
	retention := 30 * time.Minute
	m, clock := newTestManager(t, retention)
	alert := tornado(10 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	// Expire it.
	clock.Advance(15 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})

	// Retention elapses: archived, still resolvable, no transition.
	clock.Advance(retention)
	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})
	assert.Empty(t, transitions, "archival is housekeeping, not a notification")
	_, state, err := snap.ByIdentity(alert.Identity)
	require.NoError(t, err)
	assert.Equal(t, domain.StateArchived, state)

	// Another retention window later the record is pruned from memory.
	clock.Advance(retention)
	_, snap = m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})
	_, _, err = snap.ByIdentity(alert.Identity)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyCycle_UpdateForEndedWarningReadmits(t *testing.T) {
	m, clock := newTestManager(t, time.Hour)
	alert := tornado(10 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", alert)})

	// Expire it, then a revised warning for the same identity arrives with
	// fresh validity.
	clock.Advance(15 * time.Minute)
	m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159")})

	revived := alert
	revived.Sent = clock.Now()
	revived.Expires = clock.Now().Add(30 * time.Minute)
	revived.Fingerprint = domain.Fingerprint(revived)

	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", revived)})
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.KindNew, transitions[0].Kind, "a reissued warning reads as new, not an update to a dead one")
	assert.Len(t, snap.Live(), 1)
}

func TestApplyCycle_TransitionsInPriorityOrder(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	minor := tornado(45 * time.Minute)
	minor.Event = "Flood Advisory"
	minor.Severity = domain.SeverityMinor
	minor.Urgency = domain.UrgencyExpected
	minor.Identity = domain.Identity(minor.Sender, minor.ZoneCodes, minor.Event)
	minor.Fingerprint = domain.Fingerprint(minor)

	extreme := tornado(45 * time.Minute)

	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", minor, extreme)})

	require.Len(t, transitions, 2)
	assert.Equal(t, extreme.Identity, transitions[0].Alert.Identity, "most urgent first")
	assert.Equal(t, minor.Identity, transitions[1].Alert.Identity)
	assert.Equal(t, extreme.Identity, snap.Live()[0].Identity)
}

func TestApplyCycle_NonActualExcludedFromLiveSet(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	test := tornado(45 * time.Minute)
	test.Status = domain.StatusTest
	test.Fingerprint = domain.Fingerprint(test)

	transitions, snap := m.ApplyCycle([]lifecycle.ZoneBatch{batch("TXZ159", test)})

	require.Len(t, transitions, 1, "tracked for audit")
	assert.Empty(t, snap.Live(), "never indexed")
	_, state, err := snap.ByIdentity(test.Identity)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, state, "still resolvable by identity")
}

func TestSnapshot_BeforeFirstCycle(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	snap := m.Snapshot()
	assert.Empty(t, snap.Live())
	assert.Equal(t, cycleStart, snap.TakenAt())
}
