package signal

import (
	"time"

	"storypool/internal/models"
)

// Momentum compares the most recent snapshot's odds to those of the snapshot
// closest to window ago, per choice. With fewer than two snapshots there is
// no trend to report and the result is nil rather than a synthesized zero.
func Momentum(snapshots []models.OddsSnapshot, window time.Duration) map[string]float64 {
	if len(snapshots) < 2 {
		return nil
	}
	latest := snapshots[0]
	for _, s := range snapshots[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}

	target := latest.CreatedAt.Add(-window)
	baseline := snapshots[0]
	best := absDuration(baseline.CreatedAt.Sub(target))
	for _, s := range snapshots[1:] {
		if s.ID == latest.ID {
			continue
		}
		d := absDuration(s.CreatedAt.Sub(target))
		if d < best {
			baseline = s
			best = d
		}
	}
	if baseline.ID == latest.ID {
		return nil
	}

	now := latest.Odds.Data().PerChoice
	then := baseline.Odds.Data().PerChoice
	delta := make(map[string]float64, len(now))
	for choiceID, p := range now {
		delta[choiceID] = p - then[choiceID]
	}
	// Choices that had odds then but vanished since still show their drop.
	for choiceID, p := range then {
		if _, ok := now[choiceID]; !ok {
			delta[choiceID] = -p
		}
	}
	return delta
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
