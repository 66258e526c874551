package feed_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/couchcryptid/storm-alert-dispatch/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureTemplate = `{
	"id": %q,
	"event": %q,
	"headline": "Tornado Warning for Collin County",
	"description": "A tornado has been spotted.",
	"instruction": "Take shelter now.",
	"severity": "Extreme",
	"urgency": "Immediate",
	"certainty": "Observed",
	"status": "Actual",
	"messageType": "Alert",
	"sent": %q,
	"effective": "2026-04-03T17:55:00Z",
	"expires": "2026-04-03T18:45:00Z",
	"areaDesc": "Collin County",
	"sender": "w-nws.webmaster@noaa.gov",
	"senderName": "NWS Fort Worth TX",
	"geocode": {"UGC": ["TXZ159"], "SAME": ["048085"]}
}`

func responseWith(features ...string) string {
	out := `{"features": [`
	for i, f := range features {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out + `]}`
}

func tornadoFeature(id, sent string) string {
	return fmt.Sprintf(featureTemplate, id, "Tornado Warning", sent)
}

func newTestClient(t *testing.T, handler http.Handler, maxRetries int) *feed.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return feed.NewClient(srv.URL, "test-agent", 5*time.Second, maxRetries, slog.Default())
}

func TestClient_Fetch_ParsesAlerts(t *testing.T) {
	var gotPath, gotAgent, gotAccept string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, responseWith(tornadoFeature("id-1", "2026-04-03T18:00:00Z")))
	}), 0)

	alerts, err := client.Fetch(context.Background(), "TXZ159")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "/alerts/active?zone=TXZ159", gotPath)
	assert.Equal(t, "test-agent", gotAgent)
	assert.Equal(t, "application/geo+json", gotAccept)
	assert.Equal(t, "Tornado Warning", a.Event)
	assert.Equal(t, domain.SeverityExtreme, a.Severity)
	assert.Equal(t, domain.UrgencyImmediate, a.Urgency)
	assert.Equal(t, domain.StatusActual, a.Status)
	assert.Equal(t, []string{"TXZ159"}, a.ZoneCodes)
	assert.NotEmpty(t, a.Identity)
	assert.NotEmpty(t, a.Fingerprint)
	assert.Equal(t, time.Date(2026, 4, 3, 18, 45, 0, 0, time.UTC), a.Expires.UTC())
}

func TestClient_Fetch_SkipsMalformedRecords(t *testing.T) {
	noEvent := `{"id": "bad-1", "event": "", "sent": "2026-04-03T18:00:00Z", "effective": "2026-04-03T18:00:00Z", "geocode": {"UGC": ["TXZ159"]}}`
	noZones := `{"id": "bad-2", "event": "Flood Advisory", "sent": "2026-04-03T18:00:00Z", "effective": "2026-04-03T18:00:00Z", "geocode": {"UGC": []}}`

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseWith(noEvent, tornadoFeature("id-1", "2026-04-03T18:00:00Z"), noZones))
	}), 0)

	alerts, err := client.Fetch(context.Background(), "TXZ159")
	require.NoError(t, err, "malformed records are skipped, not fatal")
	require.Len(t, alerts, 1)
	assert.Equal(t, "Tornado Warning", alerts[0].Event)
}

func TestClient_Fetch_KeepsLatestRevision(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseWith(
			tornadoFeature("id-1", "2026-04-03T18:10:00Z"),
			tornadoFeature("id-2", "2026-04-03T18:00:00Z"),
		))
	}), 0)

	alerts, err := client.Fetch(context.Background(), "TXZ159")
	require.NoError(t, err)
	require.Len(t, alerts, 1, "both records share one identity")
	assert.Equal(t, time.Date(2026, 4, 3, 18, 10, 0, 0, time.UTC), alerts[0].Sent.UTC())
}

func TestClient_Fetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, responseWith(tornadoFeature("id-1", "2026-04-03T18:00:00Z")))
	}), 2)

	alerts, err := client.Fetch(context.Background(), "TXZ159")
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Fetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 1)

	_, err := client.Fetch(context.Background(), "TXZ159")
	assert.ErrorIs(t, err, feed.ErrUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Fetch_InvalidResponseNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}), 3)

	_, err := client.Fetch(context.Background(), "TXZ159")
	assert.ErrorIs(t, err, feed.ErrInvalidResponse)
	assert.Equal(t, int32(1), calls.Load(), "a 404 will not get better on retry")
}

func TestClient_Fetch_MalformedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>maintenance page</html>")
	}), 0)

	_, err := client.Fetch(context.Background(), "TXZ159")
	assert.ErrorIs(t, err, feed.ErrInvalidResponse)
}

func TestClient_FetchZones_PartialFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zone") == "OKZ001" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, responseWith(tornadoFeature("id-1", "2026-04-03T18:00:00Z")))
	}), 0)

	results := client.FetchZones(context.Background(), []string{"TXZ159", "OKZ001"})
	require.Len(t, results, 2)

	byZone := map[string]feed.Result{}
	for _, r := range results {
		byZone[r.Zone] = r
	}
	assert.NoError(t, byZone["TXZ159"].Err)
	assert.Len(t, byZone["TXZ159"].Alerts, 1)
	assert.ErrorIs(t, byZone["OKZ001"].Err, feed.ErrUnavailable, "one zone failing never aborts the others")
}

func TestClient_Ping(t *testing.T) {
	ok := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features": []}`)
	}), 0)
	assert.NoError(t, ok.Ping(context.Background()))

	down := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), 0)
	assert.ErrorIs(t, down.Ping(context.Background()), feed.ErrUnavailable)
}
