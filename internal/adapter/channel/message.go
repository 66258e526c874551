// Package channel implements the concrete notification channel adapters:
// email over SMTP, webhook over HTTP JSON, and Pushover-style push. Each
// adapter classifies failures as transient (retried by the dispatcher) or
// permanent (failed immediately) via the dispatch sentinels.
package channel

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-alert-dispatch/internal/dispatch"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

// subject renders the one-line summary used as email subject and push title.
func subject(msg dispatch.Message) string {
	prefix := map[domain.TransitionKind]string{
		domain.KindNew:      "",
		domain.KindUpdate:   "Update: ",
		domain.KindAllClear: "All clear: ",
	}[msg.Kind]

	title := msg.Alert.Event
	if msg.Alert.Severity >= domain.SeveritySevere && msg.Kind != domain.KindAllClear {
		title = fmt.Sprintf("%s (%s)", title, msg.Alert.Severity)
	}
	return prefix + title
}

// body renders the multi-line text form of a notification.
func body(msg dispatch.Message) string {
	var b strings.Builder

	if msg.Alert.Headline != "" {
		b.WriteString(msg.Alert.Headline)
		b.WriteString("\n\n")
	}
	if msg.Kind == domain.KindAllClear {
		fmt.Fprintf(&b, "The %s for %s is no longer in effect.\n", msg.Alert.Event, msg.Alert.AreaDesc)
		return b.String()
	}

	fmt.Fprintf(&b, "Area: %s\n", msg.Alert.AreaDesc)
	fmt.Fprintf(&b, "Severity: %s / %s / %s\n",
		msg.Alert.Severity, msg.Alert.Urgency, msg.Alert.Certainty)
	if end, ok := msg.Alert.EndsAt(); ok {
		fmt.Fprintf(&b, "In effect until: %s\n", end.Format("Mon Jan 2 3:04 PM MST"))
	}
	if msg.Alert.Description != "" {
		b.WriteString("\n")
		b.WriteString(msg.Alert.Description)
		b.WriteString("\n")
	}
	if msg.Alert.Instruction != "" {
		b.WriteString("\n")
		b.WriteString(msg.Alert.Instruction)
		b.WriteString("\n")
	}
	return b.String()
}
