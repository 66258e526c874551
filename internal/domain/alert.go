package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Alert is one version of a weather warning, immutable once built.
// A newer version of the same warning carries the same Identity and a
// different Fingerprint.
type Alert struct {
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint"`

	Event       string `json:"event"`
	Headline    string `json:"headline,omitempty"`
	Description string `json:"description,omitempty"`
	Instruction string `json:"instruction,omitempty"`

	Severity    Severity    `json:"severity"`
	Urgency     Urgency     `json:"urgency"`
	Certainty   Certainty   `json:"certainty"`
	Status      Status      `json:"status"`
	MessageType MessageType `json:"message_type"`

	// Timing. Onset, Expires, and Ends may be absent (zero); an alert with
	// no Expires and no Ends stays active until superseded or cancelled.
	Sent      time.Time `json:"sent"`
	Effective time.Time `json:"effective"`
	Onset     time.Time `json:"onset,omitzero"`
	Expires   time.Time `json:"expires,omitzero"`
	Ends      time.Time `json:"ends,omitzero"`

	AreaDesc   string   `json:"area_desc"`
	ZoneCodes  []string `json:"zone_codes"`
	SAMECodes  []string `json:"same_codes,omitempty"`
	Sender     string   `json:"sender,omitempty"`
	SenderName string   `json:"sender_name,omitempty"`
}

// EndsAt returns the time the alert ends on its own terms: Ends when
// present, otherwise Expires. The second return is false when neither is
// set, meaning the alert has no self-expiry.
func (a Alert) EndsAt() (time.Time, bool) {
	if !a.Ends.IsZero() {
		return a.Ends, true
	}
	if !a.Expires.IsZero() {
		return a.Expires, true
	}
	return time.Time{}, false
}

// ExpiredAt reports whether the alert's own end time has passed at now.
// Alerts without an end time never self-expire.
func (a Alert) ExpiredAt(now time.Time) bool {
	end, ok := a.EndsAt()
	return ok && !now.Before(end)
}

// IsEmergency reports whether the alert is Emergency-class: Extreme severity
// with Immediate urgency. Emergency-class alerts bypass quiet hours and
// subscriber rate caps.
func (a Alert) IsEmergency() bool {
	return a.Severity == SeverityExtreme && a.Urgency == UrgencyImmediate
}

// Identity derives the stable key for a warning from its sender, zone codes,
// and event name. The NWS message id changes on every revision, so this is
// what the lifecycle keys on instead. Zone codes are sorted so feed ordering
// cannot split one warning into two identities.
func Identity(sender string, zoneCodes []string, event string) string {
	zones := slices.Clone(zoneCodes)
	slices.Sort(zones)

	input := fmt.Sprintf("%s|%s|%s", sender, strings.Join(zones, ","), event)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])

	if slug := eventSlug(event); slug != "" {
		return slug + "-" + short
	}
	return short
}

// Fingerprint hashes the content fields that constitute a material change.
// Two revisions with equal fingerprints are treated as the same version.
func Fingerprint(a Alert) string {
	input := strings.Join([]string{
		a.Headline,
		a.Description,
		a.Instruction,
		a.AreaDesc,
		a.Severity.String(),
		a.Urgency.String(),
		a.Certainty.String(),
		timeKey(a.Effective),
		timeKey(a.Expires),
		timeKey(a.Ends),
	}, "|")
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// eventSlug lowercases an event name and joins its words with hyphens,
// e.g. "Tornado Warning" -> "tornado-warning".
func eventSlug(event string) string {
	fields := strings.Fields(strings.ToLower(event))
	return strings.Join(fields, "-")
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CompareAlerts is the total priority order over alerts, most urgent first:
// descending severity, urgency, certainty; then ascending effective time
// (the longer-standing warning surfaces first); then identity as a final
// deterministic tie-break. Returns a negative value when a sorts before b.
func CompareAlerts(a, b Alert) int {
	if c := int(b.Severity) - int(a.Severity); c != 0 {
		return c
	}
	if c := int(b.Urgency) - int(a.Urgency); c != 0 {
		return c
	}
	if c := int(b.Certainty) - int(a.Certainty); c != 0 {
		return c
	}
	if c := a.Effective.Compare(b.Effective); c != 0 {
		return c
	}
	return strings.Compare(a.Identity, b.Identity)
}
