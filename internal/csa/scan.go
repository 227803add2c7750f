// Package csa implements an earliest-arrival Connection Scan over a sorted
// connection array with footpath relaxation, and path reconstruction from
// the resulting backpointers.
package csa

import (
	"math"

	"journey-planner/internal/gtfs"
	"journey-planner/internal/journey"
	"journey-planner/internal/timetable"
)

// Infinity is the label of a stop that has not been reached.
const Infinity = math.MaxInt

type Via int

const (
	ViaConnection Via = iota + 1
	ViaFootpath
)

// Backpointer records how a stop's current earliest arrival was achieved.
type Backpointer struct {
	Via       Via
	Conn      gtfs.Connection // set for ViaConnection
	FromStop  string          // stop the footpath leaves from
	WalkSec   int
	DistanceM *int
}

type Result struct {
	Arrivals map[string]int
	Back     map[string]Backpointer
	Scanned  int // connections examined
}

// Arrival returns the earliest arrival at stop, or false if it was not reached.
func (r Result) Arrival(stop string) (int, bool) {
	t, ok := r.Arrivals[stop]
	return t, ok
}

// Observer is called on every label improvement. before is Infinity for
// a stop reached for the first time.
type Observer func(stop string, before, after int)

// Scan runs a single forward pass over conns, which must be sorted by DepTime.
func Scan(req journey.Request, conns []gtfs.Connection, foot timetable.Footpaths) Result {
	return ScanObserved(req, conns, foot, nil)
}

func ScanObserved(req journey.Request, conns []gtfs.Connection, foot timetable.Footpaths, obs Observer) Result {
	s := scanner{
		res: Result{
			Arrivals: map[string]int{req.FromStop: req.DepartAt},
			Back:     map[string]Backpointer{},
		},
		foot: foot,
		obs:  obs,
	}
	s.relaxFootpaths(req.FromStop, req.DepartAt)

	for _, c := range conns {
		s.res.Scanned++
		if s.label(c.FromStop) > c.DepTime {
			continue
		}
		if !s.improve(c.ToStop, c.ArrTime) {
			continue
		}
		s.res.Back[c.ToStop] = Backpointer{Via: ViaConnection, Conn: c}
		s.relaxFootpaths(c.ToStop, c.ArrTime)
	}
	return s.res
}

type scanner struct {
	res  Result
	foot timetable.Footpaths
	obs  Observer
}

func (s *scanner) label(stop string) int {
	if t, ok := s.res.Arrivals[stop]; ok {
		return t
	}
	return Infinity
}

// improve lowers stop's label to t if t is strictly earlier. Equal arrivals
// keep the existing backpointer.
func (s *scanner) improve(stop string, t int) bool {
	before := s.label(stop)
	if t >= before {
		return false
	}
	s.res.Arrivals[stop] = t
	if s.obs != nil {
		s.obs(stop, before, t)
	}
	return true
}

func (s *scanner) relaxFootpaths(stop string, at int) {
	for _, fp := range s.foot.From(stop) {
		if !s.improve(fp.ToStop, at+fp.WalkSec) {
			continue
		}
		s.res.Back[fp.ToStop] = Backpointer{
			Via:       ViaFootpath,
			FromStop:  stop,
			WalkSec:   fp.WalkSec,
			DistanceM: fp.DistanceM,
		}
	}
}
