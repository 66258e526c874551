package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

// Webhook POSTs a JSON alert summary to the subscriber's URL.
type Webhook struct {
	httpClient *http.Client
}

// NewWebhook creates the webhook adapter with a per-request timeout.
func NewWebhook(timeout time.Duration) *Webhook {
	return &Webhook{httpClient: &http.Client{Timeout: timeout}}
}

// webhookPayload is the wire format delivered to subscriber endpoints.
// Field names are part of the external contract.
type webhookPayload struct {
	Kind      string    `json:"kind"`
	Priority  string    `json:"priority"`
	Identity  string    `json:"identity"`
	Event     string    `json:"event"`
	Headline  string    `json:"headline,omitempty"`
	Severity  string    `json:"severity"`
	Urgency   string    `json:"urgency"`
	Certainty string    `json:"certainty"`
	AreaDesc  string    `json:"area_desc"`
	ZoneCodes []string  `json:"zone_codes"`
	Effective time.Time `json:"effective"`
	Expires   time.Time `json:"expires,omitzero"`
	Ends      time.Time `json:"ends,omitzero"`
}

// Send implements dispatch.Adapter. 2xx is delivered; 429 and 5xx are
// transient; any other status is permanent, since the endpoint understood
// us and said no.
func (w *Webhook) Send(ctx context.Context, sub domain.Subscriber, msg dispatch.Message) error {
	payload := webhookPayload{
		Kind:      msg.Kind.String(),
		Priority:  msg.Priority.String(),
		Identity:  msg.Alert.Identity,
		Event:     msg.Alert.Event,
		Headline:  msg.Alert.Headline,
		Severity:  msg.Alert.Severity.String(),
		Urgency:   msg.Alert.Urgency.String(),
		Certainty: msg.Alert.Certainty.String(),
		AreaDesc:  msg.Alert.AreaDesc,
		ZoneCodes: msg.Alert.ZoneCodes,
		Effective: msg.Alert.Effective,
		Expires:   msg.Alert.Expires,
		Ends:      msg.Alert.Ends,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", dispatch.ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: bad webhook url %q: %v", dispatch.ErrPermanent, sub.WebhookURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook post: %v", dispatch.ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: webhook status %d", dispatch.ErrChannelUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: webhook status %d", dispatch.ErrPermanent, resp.StatusCode)
	}
}
