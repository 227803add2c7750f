package planner

import (
	"journey-planner/internal/journey"
)

// Demo network stop identifiers.
const (
	StopA = "STOP_A"
	StopB = "STOP_B"
	StopC = "STOP_C"
)

const (
	directWalkMin       = 12
	directWalkDistanceM = 900
)

// Fallback returns the synthetic itinerary for req. It is deterministic and
// always returns exactly one itinerary.
func Fallback(req journey.Request) []journey.Itinerary {
	base := req.DepartAt
	transit := func(route, trip, from, to string, min int) journey.Leg {
		return journey.Leg{
			Mode:     journey.ModeTransit,
			FromStop: from,
			ToStop:   to,
			DepTime:  base,
			ArrTime:  base + min*60,
			RouteID:  route,
			TripID:   trip,
		}
	}
	walk := func(from, to string, min, dist int) journey.Leg {
		return journey.Leg{
			Mode:      journey.ModeWalk,
			FromStop:  from,
			ToStop:    to,
			DepTime:   base,
			ArrTime:   base + min*60,
			DistanceM: journey.IntPtr(dist),
		}
	}

	var legs []journey.Leg
	switch {
	case req.FromStop == StopA && req.ToStop == StopC:
		legs = []journey.Leg{
			transit("3", "3A", StopA, StopB, 6),
			walk(StopB, StopC, 5, 350),
		}
	case req.FromStop == StopB && req.ToStop == StopA:
		legs = []journey.Leg{transit("52", "52X", StopB, StopA, 7)}
	case req.FromStop == StopC && req.ToStop == StopB:
		legs = []journey.Leg{transit("22", "22K", StopC, StopB, 8)}
	default:
		legs = []journey.Leg{walk(req.FromStop, req.ToStop, directWalkMin, directWalkDistanceM)}
	}
	return []journey.Itinerary{{Legs: legs}}
}
