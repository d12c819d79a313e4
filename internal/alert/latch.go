package alert

import "price-notifications/internal/types"

// Latch implements fire-once alerting: a crossing is reported the first time
// it is seen and suppressed until the price returns inside that bound.
// The zero value is not usable; use NewLatch.
type Latch struct {
	fired map[string]map[types.Direction]bool
}

func NewLatch() *Latch {
	return &Latch{fired: make(map[string]map[types.Direction]bool)}
}

// Filter returns the events of this tick that are not already latched and
// re-arms every direction of a sampled asset that did not fire.
func (l *Latch) Filter(samples []types.PriceSample, events []types.AlertEvent) []types.AlertEvent {
	current := make(map[string]map[types.Direction]bool)
	for _, e := range events {
		if current[e.AssetID] == nil {
			current[e.AssetID] = make(map[types.Direction]bool)
		}
		current[e.AssetID][e.Direction] = true
	}

	for _, s := range samples {
		for _, dir := range []types.Direction{types.Above, types.Below} {
			if !current[s.AssetID][dir] {
				delete(l.fired[s.AssetID], dir)
			}
		}
	}

	var out []types.AlertEvent
	for _, e := range events {
		if l.fired[e.AssetID][e.Direction] {
			continue
		}
		if l.fired[e.AssetID] == nil {
			l.fired[e.AssetID] = make(map[types.Direction]bool)
		}
		l.fired[e.AssetID][e.Direction] = true
		out = append(out, e)
	}
	return out
}
