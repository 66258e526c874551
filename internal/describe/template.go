package describe

import (
	"fmt"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

// headline prefers the CAP headline and falls back to composing one from
// the event name and sender, since smaller offices sometimes omit it.
func headline(a domain.Alert) string {
	if a.Headline != "" {
		return a.Headline
	}
	if a.SenderName != "" {
		return fmt.Sprintf("%s issued by %s", a.Event, a.SenderName)
	}
	return a.Event
}

func area(a domain.Alert) string {
	if a.AreaDesc == "" {
		return "Affected area unavailable"
	}
	return "For " + a.AreaDesc
}

// timing phrases the alert's remaining validity relative to now. Spoken
// output wants "expires in 45 minutes", not an ISO timestamp.
func timing(a domain.Alert, now time.Time) string {
	end, ok := a.EndsAt()
	if !ok {
		return "In effect until further notice"
	}

	remaining := end.Sub(now)
	switch {
	case remaining <= 0:
		return "No longer in effect"
	case remaining < time.Minute:
		return "Expires in less than a minute"
	case remaining < 90*time.Minute:
		return fmt.Sprintf("Expires in %d minutes", int(remaining.Round(time.Minute).Minutes()))
	case end.YearDay() == now.YearDay() && end.Year() == now.Year():
		return "In effect until " + end.Format("3:04 PM MST")
	default:
		return "In effect until " + end.Format("Monday 3:04 PM MST")
	}
}
