package domain

import (
	"fmt"
	"slices"
	"time"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
	ChannelPush    Channel = "push"
)

// Subscriber is one notification recipient with its contact addresses and
// filtering preferences.
type Subscriber struct {
	ID    string `json:"id" db:"id"`
	Label string `json:"label" db:"label"`

	EmailAddress string `json:"email_address,omitempty" db:"email_address"`
	WebhookURL   string `json:"webhook_url,omitempty" db:"webhook_url"`
	PushToken    string `json:"push_token,omitempty" db:"push_token"`

	Preferences Preferences `json:"preferences"`
}

// Preferences are a subscriber's filtering and throttling settings.
type Preferences struct {
	Zones        []string  `json:"zones"`
	MinSeverity  Severity  `json:"min_severity"`
	MinUrgency   Urgency   `json:"min_urgency"`
	MinCertainty Certainty `json:"min_certainty"`
	Channels     []Channel `json:"channels"`

	QuietHours *QuietHours `json:"quiet_hours,omitempty"`

	MaxPerHour int `json:"max_per_hour"`
	MaxPerDay  int `json:"max_per_day"`
}

// EnabledChannels returns the channels the subscriber has both enabled and
// configured an address for.
func (s Subscriber) EnabledChannels() []Channel {
	var out []Channel
	for _, ch := range s.Preferences.Channels {
		switch ch {
		case ChannelEmail:
			if s.EmailAddress != "" {
				out = append(out, ch)
			}
		case ChannelWebhook:
			if s.WebhookURL != "" {
				out = append(out, ch)
			}
		case ChannelPush:
			if s.PushToken != "" {
				out = append(out, ch)
			}
		}
	}
	return out
}

// Matches reports whether an alert passes the subscriber's zone and
// threshold filters. Quiet hours and rate caps are applied separately by
// the dispatcher; this is the pure preference filter.
func (s Subscriber) Matches(a Alert) bool {
	if a.Severity < s.Preferences.MinSeverity ||
		a.Urgency < s.Preferences.MinUrgency ||
		a.Certainty < s.Preferences.MinCertainty {
		return false
	}
	if len(s.Preferences.Zones) == 0 {
		return true
	}
	for _, zone := range a.ZoneCodes {
		if slices.Contains(s.Preferences.Zones, zone) {
			return true
		}
	}
	return false
}

// QuietHours is a daily suppression window in the subscriber's local time.
// The window may cross midnight (e.g. 22:00–07:00).
type QuietHours struct {
	Start    string `json:"start"` // HH:MM
	End      string `json:"end"`   // HH:MM
	Timezone string `json:"timezone"`
}

// Contains reports whether now falls inside the window. A window that fails
// to parse (bad timezone or HH:MM) is treated as inactive so a subscriber
// misconfiguration can never silence alerts.
func (q QuietHours) Contains(now time.Time) bool {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false
	}
	start, err1 := parseClock(q.Start)
	end, err2 := parseClock(q.End)
	if err1 != nil || err2 != nil {
		return false
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	if start <= end {
		return minute >= start && minute < end
	}
	// Window crosses midnight.
	return minute >= start || minute < end
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %q", s)
	}
	return h*60 + m, nil
}
