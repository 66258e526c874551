package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Pushover emergency-priority re-send cadence. An unacknowledged emergency
// notification is re-sent every retry interval until the expire window or
// the alert's own end, whichever comes first.
const (
	emergencyRetryInterval = 2 * time.Minute
	emergencyMaxExpire     = time.Hour
)

// Push delivers notifications through a Pushover-compatible API.
type Push struct {
	apiURL     string
	appToken   string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewPush creates the push adapter.
func NewPush(apiURL, appToken string, timeout time.Duration, clock clockwork.Clock) *Push {
	return &Push{
		apiURL:     apiURL,
		appToken:   appToken,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
	}
}

// Send implements dispatch.Adapter. Priority maps onto the Pushover scale:
// NormalQuiet → -1 (no sound), Normal → 0, High → 1, Emergency → 2 with
// retry/expire so the service keeps re-sending until the user acknowledges.
func (p *Push) Send(ctx context.Context, sub domain.Subscriber, msg dispatch.Message) error {
	form := url.Values{
		"token":   {p.appToken},
		"user":    {sub.PushToken},
		"title":   {subject(msg)},
		"message": {truncate(body(msg), 1024)},
	}

	switch msg.Priority {
	case domain.PriorityNormalQuiet:
		form.Set("priority", "-1")
	case domain.PriorityNormal:
		form.Set("priority", "0")
	case domain.PriorityHigh:
		form.Set("priority", "1")
		form.Set("sound", "siren")
	case domain.PriorityEmergency:
		form.Set("priority", "2")
		form.Set("sound", "siren")
		form.Set("retry", strconv.Itoa(int(emergencyRetryInterval.Seconds())))
		form.Set("expire", strconv.Itoa(int(p.emergencyExpire(msg.Alert).Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create push request: %v", dispatch.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: push post: %v", dispatch.ErrChannelUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return fmt.Errorf("%w: push status %d", dispatch.ErrChannelUnavailable, resp.StatusCode)
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: push status %d: %s", dispatch.ErrPermanent, resp.StatusCode, detail)
	}
}

// emergencyExpire bounds the re-send window to the alert's remaining
// validity; an acknowledged-or-ended warning must stop paging.
func (p *Push) emergencyExpire(alert domain.Alert) time.Duration {
	expire := emergencyMaxExpire
	if end, ok := alert.EndsAt(); ok {
		if remaining := end.Sub(p.clock.Now()); remaining > 0 && remaining < expire {
			expire = remaining
		}
	}
	if expire < emergencyRetryInterval {
		expire = emergencyRetryInterval
	}
	return expire
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
