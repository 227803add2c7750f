package service

import (
	"context"
	"sort"

	"journey-planner/internal/timetable"
)

const (
	DefaultRadiusM   = 400
	DefaultWindowMin = 20
	maxAlternatives  = 20
)

// AlternativesQuery asks for departures near FromStop. At is seconds since
// midnight; nil means the current local time.
type AlternativesQuery struct {
	FromStop  string
	RadiusM   int
	WindowMin int
	At        *int
}

type Alternative struct {
	RouteID     string `json:"route_id"`
	StopID      string `json:"stop_id"`
	StopName    string `json:"stop_name,omitempty"`
	DepartInMin int    `json:"depart_in_min"`
	DistanceM   int    `json:"distance_m"`
	Changes     int    `json:"changes"`
}

// Alternatives answers with a per-stop demo fixture when one exists, else
// the generic demo fixture re-labelled for the requested stop. Outside demo
// mode departures are read from the loaded timetable.
func (s *Service) Alternatives(ctx context.Context, q AlternativesQuery) (map[string]any, error) {
	if q.RadiusM <= 0 {
		q.RadiusM = DefaultRadiusM
	}
	if q.WindowMin <= 0 {
		q.WindowMin = DefaultWindowMin
	}
	if s.DemoMode && s.Fixtures != nil {
		return s.demoAlternatives(q.FromStop)
	}
	return map[string]any{
		"from_stop":    q.FromStop,
		"alternatives": s.liveAlternatives(q),
	}, nil
}

func (s *Service) demoAlternatives(from string) (map[string]any, error) {
	doc, ok, err := s.Fixtures.LoadIfExists("demo_alternatives_" + from + ".json")
	if err != nil {
		return nil, err
	}
	if ok && len(doc) > 0 {
		return doc, nil
	}
	doc, err = s.Fixtures.Load("demo_alternatives.json")
	if err != nil {
		return nil, err
	}
	doc["from_stop"] = from
	return doc, nil
}

// liveAlternatives lists the earliest departure of each route at the origin
// and at stops within the radius, ordered by departure then distance.
func (s *Service) liveAlternatives(q AlternativesQuery) []Alternative {
	out := []Alternative{}
	if s.Timetable == nil {
		return out
	}
	ix := s.Timetable.Load()
	if ix == nil {
		return out
	}
	at := s.secondsSinceMidnight()
	if q.At != nil {
		at = *q.At
	}
	until := at + q.WindowMin*60

	candidates := []timetable.Nearby{{DistanceM: 0}}
	candidates[0].Stop, _ = ix.Stop(q.FromStop)
	candidates[0].Stop.ID = q.FromStop
	candidates = append(candidates, ix.StopsNearby(q.FromStop, float64(q.RadiusM))...)

	type key struct{ route, stop string }
	seen := map[key]bool{}
	type found struct {
		Alternative
		dep int
	}
	var all []found
	for _, c := range candidates {
		for _, conn := range ix.DeparturesFrom(c.Stop.ID, at, until) {
			k := key{conn.RouteID, c.Stop.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			all = append(all, found{
				Alternative: Alternative{
					RouteID:     conn.RouteID,
					StopID:      c.Stop.ID,
					StopName:    c.Stop.Name,
					DepartInMin: (conn.DepTime - at) / 60,
					DistanceM:   c.DistanceM,
				},
				dep: conn.DepTime,
			})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].dep != all[j].dep {
			return all[i].dep < all[j].dep
		}
		return all[i].DistanceM < all[j].DistanceM
	})
	for i, f := range all {
		if i == maxAlternatives {
			break
		}
		out = append(out, f.Alternative)
	}
	return out
}

func (s *Service) secondsSinceMidnight() int {
	t := s.now()
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
