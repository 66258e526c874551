package pipeline_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/feed"
	"github.com/couchcryptid/storm-alert-dispatch/internal/lifecycle"
	"github.com/couchcryptid/storm-alert-dispatch/internal/observability"
	"github.com/couchcryptid/storm-alert-dispatch/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cycleTime = time.Date(2026, time.April, 3, 18, 0, 0, 0, time.UTC)

// --- mocks ---

type mockFetcher struct {
	mu      sync.Mutex
	results []feed.Result
	calls   int
}

func (m *mockFetcher) FetchZones(_ context.Context, zones []string) []feed.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.results != nil {
		return m.results
	}
	out := make([]feed.Result, len(zones))
	for i, z := range zones {
		out[i] = feed.Result{Zone: z}
	}
	return out
}

type mockLog struct {
	appended []domain.Transition
	err      error
}

func (m *mockLog) AppendTransitions(_ context.Context, transitions []domain.Transition) error {
	m.appended = append(m.appended, transitions...)
	return m.err
}

type mockNotifier struct {
	dispatched [][]domain.Transition
}

func (m *mockNotifier) Dispatch(_ context.Context, transitions []domain.Transition) []domain.DispatchJob {
	m.dispatched = append(m.dispatched, transitions)
	return nil
}

type mockPublisher struct {
	published []domain.Transition
}

func (m *mockPublisher) PublishTransitions(_ context.Context, transitions []domain.Transition) {
	m.published = append(m.published, transitions...)
}

// --- helpers ---

func activeTornado() domain.Alert {
	a := domain.Alert{
		Event:     "Tornado Warning",
		Severity:  domain.SeverityExtreme,
		Urgency:   domain.UrgencyImmediate,
		Status:    domain.StatusActual,
		Sent:      cycleTime,
		Effective: cycleTime,
		Expires:   cycleTime.Add(45 * time.Minute),
		ZoneCodes: []string{"TXZ159"},
		Sender:    "w-nws.webmaster@noaa.gov",
	}
	a.Identity = domain.Identity(a.Sender, a.ZoneCodes, a.Event)
	a.Fingerprint = domain.Fingerprint(a)
	return a
}

type fixture struct {
	fetcher  *mockFetcher
	log      *mockLog
	notifier *mockNotifier
	events   *mockPublisher
	pipeline *pipeline.Pipeline
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T, fetcher *mockFetcher, withEvents bool) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(cycleTime)
	f := &fixture{
		fetcher:  fetcher,
		log:      &mockLog{},
		notifier: &mockNotifier{},
		clock:    clock,
	}

	var events pipeline.EventPublisher
	if withEvents {
		f.events = &mockPublisher{}
		events = f.events
	}

	manager := lifecycle.NewManager(time.Hour, clock, slog.Default())
	f.pipeline = pipeline.New(fetcher, manager, f.log, f.notifier, events,
		[]string{"TXZ159"}, time.Minute, 30*time.Second,
		clock, slog.Default(), observability.NewMetricsForTesting())
	return f
}

// --- tests ---

func TestRunCycle_HappyPath(t *testing.T) {
	alert := activeTornado()
	f := newFixture(t, &mockFetcher{results: []feed.Result{{Zone: "TXZ159", Alerts: []domain.Alert{alert}}}}, true)

	require.Error(t, f.pipeline.CheckReadiness(context.Background()), "not ready before the first cycle")

	f.pipeline.RunCycle(context.Background())

	snap := f.pipeline.Current()
	require.Len(t, snap.Live(), 1)
	assert.Equal(t, alert.Identity, snap.Live()[0].Identity)

	require.Len(t, f.log.appended, 1)
	assert.Equal(t, domain.KindNew, f.log.appended[0].Kind)
	require.Len(t, f.notifier.dispatched, 1)
	assert.Len(t, f.events.published, 1)
	assert.NoError(t, f.pipeline.CheckReadiness(context.Background()))
}

func TestRunCycle_NoChangesNoDownstreamCalls(t *testing.T) {
	alert := activeTornado()
	f := newFixture(t, &mockFetcher{results: []feed.Result{{Zone: "TXZ159", Alerts: []domain.Alert{alert}}}}, true)

	f.pipeline.RunCycle(context.Background())
	f.pipeline.RunCycle(context.Background())

	assert.Len(t, f.log.appended, 1, "second cycle saw no change")
	assert.Len(t, f.notifier.dispatched, 1)
	assert.Len(t, f.events.published, 1)
}

func TestRunCycle_AllFetchesFailed(t *testing.T) {
	alert := activeTornado()
	f := newFixture(t, &mockFetcher{results: []feed.Result{{Zone: "TXZ159", Alerts: []domain.Alert{alert}}}}, false)
	f.pipeline.RunCycle(context.Background())

	f.fetcher.mu.Lock()
	f.fetcher.results = []feed.Result{{Zone: "TXZ159", Err: feed.ErrUnavailable}}
	f.fetcher.mu.Unlock()

	f.pipeline.RunCycle(context.Background())

	assert.Len(t, f.pipeline.Current().Live(), 1, "a failed cycle leaves the last known state standing")
	assert.Len(t, f.log.appended, 1, "no transitions from the failed cycle")
}

func TestRunCycle_ExpiryDuringOutage(t *testing.T) {
	alert := activeTornado()
	f := newFixture(t, &mockFetcher{results: []feed.Result{{Zone: "TXZ159", Alerts: []domain.Alert{alert}}}}, false)
	f.pipeline.RunCycle(context.Background())

	f.fetcher.mu.Lock()
	f.fetcher.results = []feed.Result{{Zone: "TXZ159", Err: feed.ErrUnavailable}}
	f.fetcher.mu.Unlock()

	f.clock.Advance(time.Hour)
	f.pipeline.RunCycle(context.Background())

	assert.Empty(t, f.pipeline.Current().Live(), "the alert's own end time applies even while the feed is down")
	require.Len(t, f.log.appended, 2)
	assert.Equal(t, domain.KindAllClear, f.log.appended[1].Kind)
}

func TestRunCycle_NilEventsPublisher(t *testing.T) {
	alert := activeTornado()
	f := newFixture(t, &mockFetcher{results: []feed.Result{{Zone: "TXZ159", Alerts: []domain.Alert{alert}}}}, false)

	assert.NotPanics(t, func() { f.pipeline.RunCycle(context.Background()) })
	assert.Len(t, f.log.appended, 1)
}

func TestCurrent_BeforeFirstCycle(t *testing.T) {
	f := newFixture(t, &mockFetcher{}, false)

	snap := f.pipeline.Current()
	require.NotNil(t, snap, "readers get an empty snapshot at startup, never nil")
	assert.Empty(t, snap.Live())
}
