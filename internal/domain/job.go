package domain

import "time"

// Priority is the delivery intensity of a notification, derived from the
// alert's severity and urgency by MapPriority.
type Priority int

const (
	PriorityNormalQuiet Priority = iota // reduced intensity, e.g. silent push
	PriorityNormal
	PriorityHigh
	PriorityEmergency // acknowledgment semantics where the channel supports it
)

var priorityNames = map[Priority]string{
	PriorityNormalQuiet: "normal-quiet",
	PriorityNormal:      "normal",
	PriorityHigh:        "high",
	PriorityEmergency:   "emergency",
}

func (p Priority) String() string { return enumName(priorityNames, p) }

// MapPriority maps severity and urgency to a channel priority:
// Extreme+Immediate → Emergency, Severe+Immediate → High, Minor →
// NormalQuiet, everything else Normal.
func MapPriority(sev Severity, urg Urgency) Priority {
	switch {
	case sev == SeverityExtreme && urg == UrgencyImmediate:
		return PriorityEmergency
	case sev == SeveritySevere && urg == UrgencyImmediate:
		return PriorityHigh
	case sev == SeverityMinor:
		return PriorityNormalQuiet
	default:
		return PriorityNormal
	}
}

// Outcome is the terminal (or pending) disposition of a dispatch job.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped" // suppressed by rate cap or quiet hours
	OutcomeFailed    Outcome = "failed"  // retries exhausted
)

// DispatchJob is one unit of outbound notification work: one subscriber,
// one channel, one transition. The dispatcher owns it until terminal.
type DispatchJob struct {
	ID            string         `json:"id"`
	SubscriberID  string         `json:"subscriber_id"`
	AlertIdentity string         `json:"alert_identity"`
	Kind          TransitionKind `json:"kind"`
	Channel       Channel        `json:"channel"`
	Priority      Priority       `json:"priority"`
	Attempts      int            `json:"attempts"`
	NextAttemptAt time.Time      `json:"next_attempt_at,omitzero"`
	Outcome       Outcome        `json:"outcome"`
}
