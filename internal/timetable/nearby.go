package timetable

import (
	"math"
	"sort"

	"journey-planner/internal/gtfs"
)

type Nearby struct {
	Stop      gtfs.Stop
	DistanceM int
}

// StopsNearby returns stops within radiusM of stopID, closest first.
// Coordinates are used when known; footpaths with a recorded distance
// cover stops without a position. The origin itself is excluded.
func (ix *Index) StopsNearby(stopID string, radiusM float64) []Nearby {
	best := map[string]float64{}
	if origin, ok := ix.stops[stopID]; ok && origin.HasCoords() {
		for id, s := range ix.stops {
			if id == stopID || !s.HasCoords() {
				continue
			}
			if d := haversine(origin.Lat, origin.Lon, s.Lat, s.Lon); d <= radiusM {
				best[id] = d
			}
		}
	}
	for _, fp := range ix.foot.From(stopID) {
		if fp.DistanceM == nil || fp.ToStop == stopID {
			continue
		}
		d := float64(*fp.DistanceM)
		if d > radiusM {
			continue
		}
		if cur, ok := best[fp.ToStop]; !ok || d < cur {
			best[fp.ToStop] = d
		}
	}
	out := make([]Nearby, 0, len(best))
	for id, d := range best {
		s, ok := ix.stops[id]
		if !ok {
			s = gtfs.Stop{ID: id}
		}
		out = append(out, Nearby{Stop: s, DistanceM: int(math.Round(d))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].Stop.ID < out[j].Stop.ID
	})
	return out
}

// Haversine distance in meters
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
