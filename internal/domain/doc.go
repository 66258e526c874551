// Package domain models National Weather Service (NWS) watch/warning/advisory
// alerts and the lifecycle the dispatch service drives them through.
//
// # Data Source
//
// Alerts originate from the NWS CAP-over-GeoJSON API at
// https://api.weather.gov/alerts/active?zone=<UGC>. Each feature carries the
// CAP fields this service consumes: event, headline, description, instruction,
// severity, urgency, certainty, status, messageType, the timing tuple
// (sent/effective/onset/expires/ends), areaDesc, and the UGC/SAME geocodes.
//
// # Identity vs. message ID
//
// The API's own alert id changes on every content revision of the same
// warning, so it cannot anchor a lifecycle. Identity here is a deterministic
// SHA-256 over sender, sorted zone codes, and event name: stable across
// revisions of one warning, distinct across warnings. See [Identity].
//
// Material content changes are detected with a separate fingerprint hash over
// the displayed fields. Same identity + new fingerprint = an update to an
// existing warning, not a new one. See [Fingerprint].
//
// # CAP enumerations
//
// Severity, urgency, and certainty are ranked enumerations with explicit
// total orders rather than the loose string comparisons CAP consumers often
// fall into:
//
//	Severity:  Unknown < Minor < Moderate < Severe < Extreme
//	Urgency:   Unknown < Past < Future < Expected < Immediate
//	Certainty: Unknown < Unlikely < Possible < Likely < Observed
//
// Unknown always ranks below every known value so unparseable feed data can
// never outrank real warnings.
//
// # Priority order
//
// [CompareAlerts] defines the single total order used everywhere an ordering
// is observable: index assignment, display, and notification sequencing.
// Descending severity, then urgency, then certainty; earlier effective time
// breaks ties (the older warning keeps its slot); identity is the final
// deterministic tie-break.
package domain
