package csa

import (
	"journey-planner/internal/journey"
)

// WalkPlaceholderSec is the duration given to reconstructed walk legs. The
// scan does not keep a walk's own departure, so walk times are approximated
// from the preceding leg instead of the footpath's walk time.
const WalkPlaceholderSec = 5 * 60

// Reconstruct follows backpointers from req.ToStop back to req.FromStop and
// returns the legs in travel order. It reports false when the destination
// was not reached or the chain does not lead back to the origin.
func Reconstruct(req journey.Request, res Result) (journey.Itinerary, bool) {
	if _, ok := res.Back[req.ToStop]; !ok {
		return journey.Itinerary{}, false
	}

	var legs []journey.Leg
	cur := req.ToStop
	for steps := 0; cur != req.FromStop; steps++ {
		bp, ok := res.Back[cur]
		if !ok || steps > len(res.Back) {
			return journey.Itinerary{}, false
		}
		switch bp.Via {
		case ViaConnection:
			c := bp.Conn
			legs = append(legs, journey.Leg{
				Mode:     journey.ModeTransit,
				FromStop: c.FromStop,
				ToStop:   c.ToStop,
				DepTime:  c.DepTime,
				ArrTime:  c.ArrTime,
				RouteID:  c.RouteID,
				TripID:   c.TripID,
			})
			cur = c.FromStop
		case ViaFootpath:
			legs = append(legs, journey.Leg{
				Mode:      journey.ModeWalk,
				FromStop:  bp.FromStop,
				ToStop:    cur,
				DistanceM: bp.DistanceM,
			})
			cur = bp.FromStop
		default:
			return journey.Itinerary{}, false
		}
	}

	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}

	// A leading walk is anchored at the requested departure.
	prevArr := req.DepartAt
	for i := range legs {
		if legs[i].Mode == journey.ModeWalk {
			legs[i].DepTime = prevArr
			legs[i].ArrTime = prevArr + WalkPlaceholderSec
		}
		prevArr = legs[i].ArrTime
	}
	return journey.Itinerary{Legs: legs}, len(legs) > 0
}
