// Package lifecycle owns the canonical alert table. The Manager is the
// single writer of alert state; everything else observes immutable
// snapshots published at the end of each cycle.
package lifecycle

import "github.com/couchcryptid/storm-alert-dispatch/internal/domain"

// Classification is the change detector's verdict for one incoming payload
// against the previously known version of the same warning.
type Classification int

const (
	// ClassNew: no prior record for this identity.
	ClassNew Classification = iota
	// ClassUpdated: prior record exists and the content fingerprint differs.
	ClassUpdated
	// ClassUnchanged: prior record exists with an identical fingerprint.
	ClassUnchanged
	// ClassCancelled: the payload is an explicit cancellation message.
	ClassCancelled
)

var classificationNames = map[Classification]string{
	ClassNew:       "new",
	ClassUpdated:   "updated",
	ClassUnchanged: "unchanged",
	ClassCancelled: "cancelled",
}

func (c Classification) String() string { return classificationNames[c] }

// Classify compares an incoming alert against the previously known
// fingerprint for its identity. prevFingerprint is empty when the identity
// has never been seen.
//
// Absence is deliberately not classified here: a warning missing from a
// successfully fetched zone is only a candidate for ending, confirmed by
// the Manager against the alert's own expiry, because feeds page and omit
// still-valid alerts.
func Classify(prevFingerprint string, incoming domain.Alert) Classification {
	if incoming.MessageType == domain.MessageCancel {
		return ClassCancelled
	}
	if prevFingerprint == "" {
		return ClassNew
	}
	if incoming.Fingerprint == prevFingerprint {
		return ClassUnchanged
	}
	return ClassUpdated
}
