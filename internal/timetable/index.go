package timetable

import (
	"context"
	"sort"
	"time"

	"journey-planner/internal/gtfs"
)

// Source is the read contract the planner depends on.
type Source interface {
	// LoadConnections returns connections departing in [windowStart, windowEnd],
	// sorted ascending by departure time.
	LoadConnections(ctx context.Context, windowStart, windowEnd int) ([]gtfs.Connection, error)
	// LoadFootpaths returns outgoing footpaths per stop. Empty is not an error.
	LoadFootpaths(ctx context.Context) (Footpaths, error)
}

// StopFinder answers nearby-stop queries.
type StopFinder interface {
	StopsNearby(stopID string, radiusM float64) []Nearby
}

type span struct{ lo, hi int }

// Footpaths stores all walking edges contiguously, grouped by origin stop.
// The zero value is an empty set.
type Footpaths struct {
	paths []gtfs.Footpath
	spans map[string]span
}

// NewFootpaths groups fps by FromStop, keeping input order within a stop.
// Edges with a non-positive walk time are dropped.
func NewFootpaths(fps []gtfs.Footpath) Footpaths {
	paths := make([]gtfs.Footpath, 0, len(fps))
	for _, fp := range fps {
		if fp.WalkSec <= 0 || fp.FromStop == "" || fp.ToStop == "" {
			continue
		}
		paths = append(paths, fp)
	}
	sort.SliceStable(paths, func(i, j int) bool { return paths[i].FromStop < paths[j].FromStop })
	spans := make(map[string]span)
	for i := 0; i < len(paths); {
		j := i
		for j < len(paths) && paths[j].FromStop == paths[i].FromStop {
			j++
		}
		spans[paths[i].FromStop] = span{i, j}
		i = j
	}
	return Footpaths{paths: paths, spans: spans}
}

// From returns the footpaths leaving stop. The slice must not be modified.
func (f Footpaths) From(stop string) []gtfs.Footpath {
	s, ok := f.spans[stop]
	if !ok {
		return nil
	}
	return f.paths[s.lo:s.hi:s.hi]
}

func (f Footpaths) Len() int { return len(f.paths) }

type Stats struct {
	Connections int
	Footpaths   int
	Stops       int
	Dropped     int
	BuiltAt     time.Time
}

// Index is an immutable, pre-sorted timetable shared by concurrent scans.
type Index struct {
	conns   []gtfs.Connection
	foot    Footpaths
	stops   map[string]gtfs.Stop
	dropped int
	builtAt time.Time
}

var (
	_ Source     = (*Index)(nil)
	_ StopFinder = (*Index)(nil)
)

func (ix *Index) LoadConnections(_ context.Context, windowStart, windowEnd int) ([]gtfs.Connection, error) {
	return ix.window(windowStart, windowEnd), nil
}

func (ix *Index) LoadFootpaths(context.Context) (Footpaths, error) { return ix.foot, nil }

// window returns the sub-slice of connections with DepTime in [lo, hi].
func (ix *Index) window(lo, hi int) []gtfs.Connection {
	if hi < lo {
		return nil
	}
	i := sort.Search(len(ix.conns), func(k int) bool { return ix.conns[k].DepTime >= lo })
	j := sort.Search(len(ix.conns), func(k int) bool { return ix.conns[k].DepTime > hi })
	return ix.conns[i:j:j]
}

// Connections returns the full sorted connection array.
func (ix *Index) Connections() []gtfs.Connection { return ix.conns }

func (ix *Index) Stop(id string) (gtfs.Stop, bool) {
	s, ok := ix.stops[id]
	return s, ok
}

// DeparturesFrom lists connections leaving stop with DepTime in [from, to].
func (ix *Index) DeparturesFrom(stop string, from, to int) []gtfs.Connection {
	var out []gtfs.Connection
	for _, c := range ix.window(from, to) {
		if c.FromStop == stop {
			out = append(out, c)
		}
	}
	return out
}

func (ix *Index) Stats() Stats {
	return Stats{
		Connections: len(ix.conns),
		Footpaths:   ix.foot.Len(),
		Stops:       len(ix.stops),
		Dropped:     ix.dropped,
		BuiltAt:     ix.builtAt,
	}
}

// Builder accumulates raw timetable rows and freezes them into an Index.
type Builder struct {
	conns   []gtfs.Connection
	foot    []gtfs.Footpath
	stops   map[string]gtfs.Stop
	dropped int
}

func NewBuilder() *Builder {
	return &Builder{stops: map[string]gtfs.Stop{}}
}

// AddConnection records c unless it arrives before it departs.
func (b *Builder) AddConnection(c gtfs.Connection) bool {
	if c.ArrTime < c.DepTime {
		b.dropped++
		return false
	}
	b.conns = append(b.conns, c)
	return true
}

func (b *Builder) AddFootpath(fp gtfs.Footpath) { b.foot = append(b.foot, fp) }

func (b *Builder) AddStop(s gtfs.Stop) { b.stops[s.ID] = s }

// Build sorts connections by departure time and returns the frozen Index.
// The builder must not be reused afterwards.
func (b *Builder) Build() *Index {
	conns := b.conns
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].DepTime < conns[j].DepTime })
	return &Index{
		conns:   conns,
		foot:    NewFootpaths(b.foot),
		stops:   b.stops,
		dropped: b.dropped,
		builtAt: time.Now(),
	}
}
