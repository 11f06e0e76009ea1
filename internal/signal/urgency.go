package signal

import "time"

// Urgency buckets time-to-close for display. The levels form a total order
// with no overlap: calm strictly above 24h, moderate (12h, 24h], high
// (1h, 12h], critical at or under 1h (including already-closed pools).
type Urgency string

const (
	UrgencyCalm     Urgency = "calm"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func UrgencyFor(timeToClose time.Duration) Urgency {
	switch {
	case timeToClose > 24*time.Hour:
		return UrgencyCalm
	case timeToClose > 12*time.Hour:
		return UrgencyModerate
	case timeToClose > time.Hour:
		return UrgencyHigh
	default:
		return UrgencyCritical
	}
}
