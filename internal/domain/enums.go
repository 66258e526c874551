package domain

// Severity is the CAP severity of an alert, ranked Unknown < Minor <
// Moderate < Severe < Extreme. The zero value is SeverityUnknown.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
	SeverityExtreme
)

var severityNames = map[Severity]string{
	SeverityUnknown:  "Unknown",
	SeverityMinor:    "Minor",
	SeverityModerate: "Moderate",
	SeveritySevere:   "Severe",
	SeverityExtreme:  "Extreme",
}

func (s Severity) String() string { return enumName(severityNames, s) }

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity maps a CAP severity string to its rank. Unrecognized or
// empty values map to SeverityUnknown rather than failing; feed data is
// not trusted to be clean.
func ParseSeverity(s string) Severity {
	switch s {
	case "Minor":
		return SeverityMinor
	case "Moderate":
		return SeverityModerate
	case "Severe":
		return SeveritySevere
	case "Extreme":
		return SeverityExtreme
	default:
		return SeverityUnknown
	}
}

// Urgency is the CAP urgency, ranked Unknown < Past < Future < Expected < Immediate.
type Urgency int

const (
	UrgencyUnknown Urgency = iota
	UrgencyPast
	UrgencyFuture
	UrgencyExpected
	UrgencyImmediate
)

var urgencyNames = map[Urgency]string{
	UrgencyUnknown:   "Unknown",
	UrgencyPast:      "Past",
	UrgencyFuture:    "Future",
	UrgencyExpected:  "Expected",
	UrgencyImmediate: "Immediate",
}

func (u Urgency) String() string { return enumName(urgencyNames, u) }

func (u Urgency) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *Urgency) UnmarshalText(text []byte) error {
	*u = ParseUrgency(string(text))
	return nil
}

// ParseUrgency maps a CAP urgency string to its rank.
func ParseUrgency(s string) Urgency {
	switch s {
	case "Past":
		return UrgencyPast
	case "Future":
		return UrgencyFuture
	case "Expected":
		return UrgencyExpected
	case "Immediate":
		return UrgencyImmediate
	default:
		return UrgencyUnknown
	}
}

// Certainty is the CAP certainty, ranked Unknown < Unlikely < Possible < Likely < Observed.
type Certainty int

const (
	CertaintyUnknown Certainty = iota
	CertaintyUnlikely
	CertaintyPossible
	CertaintyLikely
	CertaintyObserved
)

var certaintyNames = map[Certainty]string{
	CertaintyUnknown:  "Unknown",
	CertaintyUnlikely: "Unlikely",
	CertaintyPossible: "Possible",
	CertaintyLikely:   "Likely",
	CertaintyObserved: "Observed",
}

func (c Certainty) String() string { return enumName(certaintyNames, c) }

func (c Certainty) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Certainty) UnmarshalText(text []byte) error {
	*c = ParseCertainty(string(text))
	return nil
}

// ParseCertainty maps a CAP certainty string to its rank.
func ParseCertainty(s string) Certainty {
	switch s {
	case "Unlikely":
		return CertaintyUnlikely
	case "Possible":
		return CertaintyPossible
	case "Likely":
		return CertaintyLikely
	case "Observed":
		return CertaintyObserved
	default:
		return CertaintyUnknown
	}
}

// Status is the CAP status. Only StatusActual alerts are dispatched or
// index-addressable; everything else is retained for audit only.
type Status int

const (
	StatusActual Status = iota
	StatusExercise
	StatusSystem
	StatusTest
	StatusDraft
)

var statusNames = map[Status]string{
	StatusActual:   "Actual",
	StatusExercise: "Exercise",
	StatusSystem:   "System",
	StatusTest:     "Test",
	StatusDraft:    "Draft",
}

func (s Status) String() string { return enumName(statusNames, s) }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(text []byte) error {
	*s = ParseStatus(string(text))
	return nil
}

// ParseStatus maps a CAP status string. Empty or unrecognized values default
// to Actual, matching how the NWS feed omits the field on real alerts.
func ParseStatus(s string) Status {
	switch s {
	case "Exercise":
		return StatusExercise
	case "System":
		return StatusSystem
	case "Test":
		return StatusTest
	case "Draft":
		return StatusDraft
	default:
		return StatusActual
	}
}

// MessageType is the CAP messageType. Cancel is the only explicit
// end-of-life signal the feed provides.
type MessageType int

const (
	MessageAlert MessageType = iota
	MessageUpdate
	MessageCancel
)

var messageTypeNames = map[MessageType]string{
	MessageAlert:  "Alert",
	MessageUpdate: "Update",
	MessageCancel: "Cancel",
}

func (m MessageType) String() string { return enumName(messageTypeNames, m) }

func (m MessageType) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MessageType) UnmarshalText(text []byte) error {
	*m = ParseMessageType(string(text))
	return nil
}

// ParseMessageType maps a CAP messageType string, defaulting to Alert.
func ParseMessageType(s string) MessageType {
	switch s {
	case "Update":
		return MessageUpdate
	case "Cancel":
		return MessageCancel
	default:
		return MessageAlert
	}
}

func enumName[K comparable](names map[K]string, k K) string {
	if name, ok := names[k]; ok {
		return name
	}
	return "Unknown"
}
