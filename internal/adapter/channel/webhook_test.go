package channel_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/adapter/channel"
	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage() dispatch.Message {
	return dispatch.Message{
		Alert: domain.Alert{
			Identity:  "tornado-warning-1",
			Event:     "Tornado Warning",
			Headline:  "Tornado Warning for Collin County",
			Severity:  domain.SeverityExtreme,
			Urgency:   domain.UrgencyImmediate,
			Certainty: domain.CertaintyObserved,
			AreaDesc:  "Collin County",
			ZoneCodes: []string{"TXZ159"},
			Effective: time.Date(2026, 4, 3, 17, 55, 0, 0, time.UTC),
			Expires:   time.Date(2026, 4, 3, 18, 45, 0, 0, time.UTC),
		},
		Kind:     domain.KindNew,
		Priority: domain.PriorityEmergency,
	}
}

func TestWebhook_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	wh := channel.NewWebhook(5 * time.Second)
	sub := domain.Subscriber{ID: "s1", WebhookURL: srv.URL}

	require.NoError(t, wh.Send(context.Background(), sub, testMessage()))

	assert.Equal(t, "new", got["kind"])
	assert.Equal(t, "emergency", got["priority"])
	assert.Equal(t, "tornado-warning-1", got["identity"])
	assert.Equal(t, "Extreme", got["severity"])
	assert.Equal(t, "Collin County", got["area_desc"])
}

func TestWebhook_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNoContent, nil},
		{http.StatusTooManyRequests, dispatch.ErrChannelUnavailable},
		{http.StatusBadGateway, dispatch.ErrChannelUnavailable},
		{http.StatusBadRequest, dispatch.ErrPermanent},
		{http.StatusGone, dispatch.ErrPermanent},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		wh := channel.NewWebhook(5 * time.Second)
		err := wh.Send(context.Background(), domain.Subscriber{WebhookURL: srv.URL}, testMessage())
		if tt.want == nil {
			assert.NoError(t, err, "status %d", tt.status)
		} else {
			assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		}
		srv.Close()
	}
}

func TestWebhook_ConnectionFailureTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	wh := channel.NewWebhook(time.Second)
	err := wh.Send(context.Background(), domain.Subscriber{WebhookURL: srv.URL}, testMessage())
	assert.ErrorIs(t, err, dispatch.ErrChannelUnavailable)
}
