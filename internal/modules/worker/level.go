// README: Pure level/freeze derivation from delivered counts and idle time.
package worker

import "time"

// LevelFor derives a worker's level badge. tiers must be sorted ascending
// by MinDelivered; freezeAfter is how long a worker may idle before the
// badge freezes. A worker who has never delivered is not frozen.
func LevelFor(w *Worker, delivered int, now time.Time, tiers []Tier, freezeAfter time.Duration) Level {
	lvl := Level{UnfreezeProgress: w.UnfreezeProgress}
	for i, t := range tiers {
		if delivered >= t.MinDelivered {
			lvl.Name = t.Name
			if i+1 < len(tiers) {
				next := tiers[i+1].MinDelivered
				lvl.NextLevelThreshold = &next
			} else {
				lvl.NextLevelThreshold = nil
			}
			continue
		}
		if lvl.Name == "" {
			next := t.MinDelivered
			lvl.NextLevelThreshold = &next
		}
		break
	}
	lvl.IsFrozen = isFrozen(w, now, freezeAfter)
	return lvl
}

func isFrozen(w *Worker, now time.Time, freezeAfter time.Duration) bool {
	if w.LastDeliveredAt == nil {
		return false
	}
	return now.Sub(*w.LastDeliveredAt) > freezeAfter
}
