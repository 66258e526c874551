package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

// Email delivers notifications over SMTP with PLAIN auth.
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmail creates the SMTP adapter. username may be empty for
// unauthenticated relays.
func NewEmail(host string, port int, username, password, from string) *Email {
	return &Email{host: host, port: port, username: username, password: password, from: from}
}

// Send implements dispatch.Adapter. net/smtp has no context support; the
// dispatcher's retry/backoff layer bounds the damage of a hung relay.
func (e *Email) Send(_ context.Context, sub domain.Subscriber, msg dispatch.Message) error {
	to := sub.EmailAddress
	if !strings.Contains(to, "@") {
		return fmt.Errorf("%w: invalid email address %q", dispatch.ErrPermanent, to)
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", e.from, to, subject(msg))
	payload := []byte(headers + body(msg) + "\r\n")

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := smtp.SendMail(addr, auth, e.from, []string{to}, payload); err != nil {
		return fmt.Errorf("%w: smtp send to %s: %v", dispatch.ErrChannelUnavailable, to, err)
	}
	return nil
}
