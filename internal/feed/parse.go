package feed

import (
	"fmt"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
)

// NWS CAP-over-GeoJSON response types. Only the consumed fields are listed.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	ID          string  `json:"id"`
	Event       string  `json:"event"`
	Headline    string  `json:"headline"`
	Description string  `json:"description"`
	Instruction string  `json:"instruction"`
	Severity    string  `json:"severity"`
	Urgency     string  `json:"urgency"`
	Certainty   string  `json:"certainty"`
	Status      string  `json:"status"`
	MessageType string  `json:"messageType"`
	Sent        string  `json:"sent"`
	Effective   string  `json:"effective"`
	Onset       string  `json:"onset"`
	Expires     string  `json:"expires"`
	Ends        string  `json:"ends"`
	AreaDesc    string  `json:"areaDesc"`
	Sender      string  `json:"sender"`
	SenderName  string  `json:"senderName"`
	Geocode     geocode `json:"geocode"`
}

type geocode struct {
	UGC  []string `json:"UGC"`
	SAME []string `json:"SAME"`
}

// parseFeature normalizes one GeoJSON feature into a domain alert. A record
// with no event name or no zone codes is malformed: identity cannot be
// derived, so the record is rejected rather than guessed at.
func parseFeature(f feature) (domain.Alert, error) {
	p := f.Properties

	if p.Event == "" {
		return domain.Alert{}, fmt.Errorf("record %q has no event", p.ID)
	}
	if len(p.Geocode.UGC) == 0 {
		return domain.Alert{}, fmt.Errorf("record %q has no zone codes", p.ID)
	}

	sent, err := parseTimestamp(p.Sent)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("record %q: bad sent time: %w", p.ID, err)
	}
	effective, err := parseTimestamp(p.Effective)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("record %q: bad effective time: %w", p.ID, err)
	}

	alert := domain.Alert{
		Event:       p.Event,
		Headline:    p.Headline,
		Description: p.Description,
		Instruction: p.Instruction,
		Severity:    domain.ParseSeverity(p.Severity),
		Urgency:     domain.ParseUrgency(p.Urgency),
		Certainty:   domain.ParseCertainty(p.Certainty),
		Status:      domain.ParseStatus(p.Status),
		MessageType: domain.ParseMessageType(p.MessageType),
		Sent:        sent,
		Effective:   effective,
		Onset:       parseOptionalTimestamp(p.Onset),
		Expires:     parseOptionalTimestamp(p.Expires),
		Ends:        parseOptionalTimestamp(p.Ends),
		AreaDesc:    p.AreaDesc,
		ZoneCodes:   p.Geocode.UGC,
		SAMECodes:   p.Geocode.SAME,
		Sender:      p.Sender,
		SenderName:  p.SenderName,
	}

	alert.Identity = domain.Identity(alert.Sender, alert.ZoneCodes, alert.Event)
	alert.Fingerprint = domain.Fingerprint(alert)
	return alert, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	return time.Parse(time.RFC3339, s)
}

// parseOptionalTimestamp returns the zero time for absent or unparseable
// values; optional CAP timing fields degrade to "not set".
func parseOptionalTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
