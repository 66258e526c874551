package domain

import "time"

// LifecycleState is the per-identity lifecycle position. The progression is
// Active → Updated* → Expired|Cancelled → Archived; "new" exists only as a
// transition kind within the cycle that first sees a warning.
type LifecycleState int

const (
	StateActive LifecycleState = iota
	StateUpdated
	StateExpired
	StateCancelled
	StateArchived
)

var stateNames = map[LifecycleState]string{
	StateActive:    "active",
	StateUpdated:   "updated",
	StateExpired:   "expired",
	StateCancelled: "cancelled",
	StateArchived:  "archived",
}

func (s LifecycleState) String() string { return enumName(stateNames, s) }

func (s LifecycleState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LifecycleState) UnmarshalText(text []byte) error {
	*s = ParseLifecycleState(string(text))
	return nil
}

// ParseLifecycleState maps a state name back to its value, defaulting to
// StateActive.
func ParseLifecycleState(s string) LifecycleState {
	switch s {
	case "updated":
		return StateUpdated
	case "expired":
		return StateExpired
	case "cancelled":
		return StateCancelled
	case "archived":
		return StateArchived
	default:
		return StateActive
	}
}

// Live reports whether the state counts as currently in effect, i.e.
// eligible for indexing, description, and dispatch.
func (s LifecycleState) Live() bool {
	return s == StateActive || s == StateUpdated
}

// TransitionKind classifies a lifecycle transition for notification
// purposes. An update to a live warning is reported as KindUpdate, never as
// a duplicate KindNew; expiry and cancellation both read as all-clear.
type TransitionKind int

const (
	KindNew TransitionKind = iota
	KindUpdate
	KindAllClear
)

var kindNames = map[TransitionKind]string{
	KindNew:      "new",
	KindUpdate:   "update",
	KindAllClear: "all-clear",
}

func (k TransitionKind) String() string { return enumName(kindNames, k) }

func (k TransitionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TransitionKind) UnmarshalText(text []byte) error {
	*k = ParseTransitionKind(string(text))
	return nil
}

// ParseTransitionKind maps a kind name back to its value, defaulting to
// KindNew.
func ParseTransitionKind(s string) TransitionKind {
	switch s {
	case "update":
		return KindUpdate
	case "all-clear":
		return KindAllClear
	default:
		return KindNew
	}
}

// Transition is one observable lifecycle change emitted by a cycle.
type Transition struct {
	Alert      Alert          `json:"alert"`
	Kind       TransitionKind `json:"kind"`
	From       LifecycleState `json:"from"`
	To         LifecycleState `json:"to"`
	OccurredAt time.Time      `json:"occurred_at"`
}
