package domain

import (
	"errors"
	"strings"
	"time"
)

// MaxIndex caps how many live alerts get a one-digit index binding. Alerts
// beyond the cap remain live and addressable by identity or title match.
const MaxIndex = 9

var (
	// ErrNotFound means no alert with the given identity is known.
	ErrNotFound = errors.New("alert not found")

	// ErrNotCurrentlyActive means the identity exists but its alert is no
	// longer in effect; the spoken-description surface is "what is
	// happening now", not a history browser.
	ErrNotCurrentlyActive = errors.New("alert not currently active")

	// ErrIndexOutOfRange means the requested index has no binding in the
	// current snapshot.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Snapshot is the immutable read view published at the end of each cycle.
// Readers hold one snapshot and never observe a partially applied cycle;
// index bindings are only meaningful within the snapshot that produced them.
type Snapshot struct {
	takenAt time.Time
	live    []Alert          // priority order; live[0] is index 1
	byID    map[string]Alert // every known alert, live or not
	states  map[string]LifecycleState
}

// NewSnapshot builds a snapshot from the live set (already in priority
// order) and the full alert table with lifecycle states.
func NewSnapshot(takenAt time.Time, live []Alert, all map[string]Alert, states map[string]LifecycleState) *Snapshot {
	return &Snapshot{takenAt: takenAt, live: live, byID: all, states: states}
}

// TakenAt is the wall-clock time the snapshot's cycle committed.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Live returns the in-effect alerts in priority order. Callers must not
// mutate the returned slice.
func (s *Snapshot) Live() []Alert { return s.live }

// ByIndex resolves a one-digit index binding to its alert. Bindings run
// 1..MaxIndex over the live set in priority order.
func (s *Snapshot) ByIndex(n int) (Alert, error) {
	if n < 1 || n > MaxIndex || n > len(s.live) {
		return Alert{}, ErrIndexOutOfRange
	}
	return s.live[n-1], nil
}

// ByIdentity resolves any known alert, live or not, with its state.
func (s *Snapshot) ByIdentity(identity string) (Alert, LifecycleState, error) {
	a, ok := s.byID[identity]
	if !ok {
		return Alert{}, 0, ErrNotFound
	}
	return a, s.states[identity], nil
}

// MatchTitle returns the live alerts whose headline or event contains the
// given substring, case-insensitively, in priority order. An empty result
// is a valid outcome, not an error.
func (s *Snapshot) MatchTitle(substr string) []Alert {
	needle := strings.ToLower(substr)
	var matched []Alert
	for _, a := range s.live {
		if strings.Contains(strings.ToLower(a.Headline), needle) ||
			strings.Contains(strings.ToLower(a.Event), needle) {
			matched = append(matched, a)
		}
	}
	return matched
}
