package sim

import (
	"math"
	"math/rand/v2"

	"bus-simulator/internal/transit"
)

const (
	etaMinutesPerKm = 8
	etaMinMinutes   = 2
	etaMaxMinutes   = 12
	etaJitter       = 2
)

// CalculateETA estimates minutes until the route's bus reaches the pickup stop.
// The figure is cosmetic: a clamped distance heuristic plus jitter from rng.
func CalculateETA(r *transit.Route, st transit.BusState, pickup transit.Stop, running bool, rng *rand.Rand) transit.ETA {
	pickupIdx := r.StopIndex(pickup.Name)
	if pickupIdx < 0 {
		return transit.ETA{Status: transit.ETANotApplicable}
	}
	if !running {
		return transit.ETA{Status: transit.ETAInactive}
	}
	if st.Direction > 0 && st.SegmentIndex > pickupIdx {
		return transit.ETA{Status: transit.ETAPassed}
	}
	d := DistanceKm(Position(r, st), pickup.Location)
	if d < ProximityKm {
		return transit.ETA{Status: transit.ETAArriving}
	}
	base := math.Max(etaMinMinutes, math.Min(etaMaxMinutes, d*etaMinutesPerKm))
	jitter := 0.0
	if rng != nil {
		jitter = rng.Float64() * etaJitter
	}
	return transit.ETA{Status: transit.ETAMinutes, Minutes: int(math.Round(base + jitter))}
}
