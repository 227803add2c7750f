package csa

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-planner/internal/gtfs"
	"journey-planner/internal/journey"
	"journey-planner/internal/timetable"
)

func conn(from, to, trip string, dep, arr int) gtfs.Connection {
	return gtfs.Connection{FromStop: from, ToStop: to, TripID: trip, RouteID: "R-" + trip, DepTime: dep, ArrTime: arr}
}

func footpath(from, to string, walk int) gtfs.Footpath {
	return gtfs.Footpath{FromStop: from, ToStop: to, WalkSec: walk}
}

// plan runs the same steps as the planner: window load, scan, reconstruct.
func plan(t *testing.T, conns []gtfs.Connection, fps []gtfs.Footpath, req journey.Request) (Result, journey.Itinerary, bool) {
	t.Helper()
	b := timetable.NewBuilder()
	for _, c := range conns {
		b.AddConnection(c)
	}
	for _, fp := range fps {
		b.AddFootpath(fp)
	}
	ix := b.Build()
	window, err := ix.LoadConnections(context.Background(), req.DepartAt, req.WindowEnd())
	require.NoError(t, err)
	foot, err := ix.LoadFootpaths(context.Background())
	require.NoError(t, err)
	res := Scan(req, window, foot)
	it, ok := Reconstruct(req, res)
	return res, it, ok
}

func TestScan_DirectTransit(t *testing.T) {
	req := journey.NewRequest("STOP_A", "STOP_B", 28800, journey.WithWindow(900))
	_, it, ok := plan(t, []gtfs.Connection{conn("STOP_A", "STOP_B", "T1", 28800, 29100)}, nil, req)
	require.True(t, ok)
	require.Len(t, it.Legs, 1)
	leg := it.Legs[0]
	assert.Equal(t, journey.ModeTransit, leg.Mode)
	assert.Equal(t, "T1", leg.TripID)
	assert.Equal(t, "R-T1", leg.RouteID)
	assert.Equal(t, 300, it.TotalTime())
	assert.Equal(t, 0, it.Transfers())
}

func TestScan_FootpathOnly(t *testing.T) {
	req := journey.NewRequest("STOP_A", "STOP_B", 0)
	res, it, ok := plan(t, nil, []gtfs.Footpath{footpath("STOP_A", "STOP_B", 300)}, req)
	require.True(t, ok)

	arr, reached := res.Arrival("STOP_B")
	require.True(t, reached)
	assert.Equal(t, 300, arr)

	require.Len(t, it.Legs, 1)
	leg := it.Legs[0]
	assert.Equal(t, journey.ModeWalk, leg.Mode)
	assert.Equal(t, 0, leg.DepTime)
	assert.Equal(t, WalkPlaceholderSec, leg.ArrTime)
}

func TestScan_Unreachable(t *testing.T) {
	req := journey.NewRequest("STOP_A", "STOP_B", 28800, journey.WithWindow(600))
	conns := []gtfs.Connection{
		conn("STOP_A", "STOP_B", "EARLY", 20000, 20300),
		conn("STOP_A", "STOP_B", "LATE", 40000, 40300),
		conn("STOP_C", "STOP_B", "OTHER", 28900, 29000),
	}
	res, _, ok := plan(t, conns, nil, req)
	assert.False(t, ok)
	_, reached := res.Arrival("STOP_B")
	assert.False(t, reached)
}

func TestScan_CannotCatchDepartedConnection(t *testing.T) {
	req := journey.NewRequest("A", "C", 100)
	conns := []gtfs.Connection{
		conn("A", "B", "T1", 100, 200),
		conn("B", "C", "T2", 150, 250), // leaves B before we arrive
		conn("B", "C", "T3", 200, 400), // arrival equals departure: catchable
	}
	_, it, ok := plan(t, conns, nil, req)
	require.True(t, ok)
	require.Len(t, it.Legs, 2)
	assert.Equal(t, "T3", it.Legs[1].TripID)
	assert.Equal(t, 1, it.Transfers())
}

func TestScan_StrictImprovementKeepsFirst(t *testing.T) {
	req := journey.NewRequest("A", "B", 0)
	conns := []gtfs.Connection{
		conn("A", "B", "FIRST", 10, 100),
		conn("A", "B", "SECOND", 20, 100),
	}
	res, it, ok := plan(t, conns, nil, req)
	require.True(t, ok)
	assert.Equal(t, "FIRST", res.Back["B"].Conn.TripID)
	assert.Equal(t, "FIRST", it.Legs[0].TripID)
}

func TestScan_FootpathRelaxedAfterArrival(t *testing.T) {
	d := 250
	req := journey.NewRequest("A", "D", 0)
	conns := []gtfs.Connection{
		conn("A", "B", "T1", 10, 100),
		conn("C", "D", "T2", 200, 300),
	}
	fps := []gtfs.Footpath{{FromStop: "B", ToStop: "C", WalkSec: 60, DistanceM: &d}}
	res, it, ok := plan(t, conns, fps, req)
	require.True(t, ok)

	arrC, _ := res.Arrival("C")
	assert.Equal(t, 160, arrC)

	require.Len(t, it.Legs, 3)
	assert.Equal(t, journey.ModeWalk, it.Legs[1].Mode)
	assert.Equal(t, 100, it.Legs[1].DepTime, "walk departs when the previous leg arrives")
	assert.Equal(t, 100+WalkPlaceholderSec, it.Legs[1].ArrTime)
	require.NotNil(t, it.Legs[1].DistanceM)
	assert.Equal(t, 250, *it.Legs[1].DistanceM)
	assert.Equal(t, 1, it.Transfers())
	assert.True(t, it.Contiguous())
}

func TestScan_OriginFootpathThenTransit(t *testing.T) {
	req := journey.NewRequest("A", "C", 1000)
	conns := []gtfs.Connection{conn("B", "C", "T1", 1200, 1500)}
	fps := []gtfs.Footpath{footpath("A", "B", 120)}
	_, it, ok := plan(t, conns, fps, req)
	require.True(t, ok)
	require.Len(t, it.Legs, 2)
	assert.Equal(t, "A", it.Legs[0].FromStop)
	assert.Equal(t, 1000, it.Legs[0].DepTime)
	assert.Equal(t, "C", it.Legs[1].ToStop)
}

func TestScan_SameTripIsNotATransfer(t *testing.T) {
	req := journey.NewRequest("A", "D", 0)
	conns := []gtfs.Connection{
		conn("A", "B", "T1", 10, 20),
		conn("B", "C", "T1", 20, 30),
		conn("C", "D", "T1", 30, 40),
	}
	_, it, ok := plan(t, conns, nil, req)
	require.True(t, ok)
	assert.Len(t, it.Legs, 3)
	assert.Equal(t, 0, it.Transfers())
	assert.Equal(t, 30, it.TotalTime())
}

func TestReconstruct_OriginEqualsDestination(t *testing.T) {
	req := journey.NewRequest("A", "A", 0)
	_, _, ok := plan(t, []gtfs.Connection{conn("A", "B", "T1", 10, 20)}, nil, req)
	assert.False(t, ok)
}

func TestReconstruct_BrokenChain(t *testing.T) {
	req := journey.NewRequest("A", "C", 0)
	res := Result{
		Arrivals: map[string]int{"A": 0, "C": 50},
		Back: map[string]Backpointer{
			"C": {Via: ViaConnection, Conn: conn("B", "C", "T1", 10, 50)},
		},
	}
	_, ok := Reconstruct(req, res)
	assert.False(t, ok)
}

func TestScan_LabelMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		conns, fps := randomNetwork(r, 12, 300)
		req := journey.NewRequest("S0", "S11", 0, journey.WithWindow(86400))

		b := timetable.NewBuilder()
		for _, c := range conns {
			b.AddConnection(c)
		}
		for _, fp := range fps {
			b.AddFootpath(fp)
		}
		ix := b.Build()
		foot, _ := ix.LoadFootpaths(context.Background())

		last := map[string]int{}
		res := ScanObserved(req, ix.Connections(), foot, func(stop string, before, after int) {
			require.Less(t, after, before, "labels only decrease")
			if prev, ok := last[stop]; ok {
				require.Equal(t, prev, before)
			}
			last[stop] = after
		})
		for stop, t0 := range last {
			assert.Equal(t, t0, res.Arrivals[stop])
		}
	}
}

func TestScan_WindowMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	for round := 0; round < 30; round++ {
		conns, fps := randomNetwork(r, 10, 200)
		prev := Infinity
		for _, w := range []int{300, 900, 1800, 3600, 7200, 86400} {
			req := journey.NewRequest("S0", "S9", 100, journey.WithWindow(w))
			res, _, _ := plan(t, conns, fps, req)
			arr, ok := res.Arrival("S9")
			if !ok {
				arr = Infinity
			}
			require.LessOrEqual(t, arr, prev, "round %d window %d", round, w)
			prev = arr
		}
	}
}

func TestReconstruct_Contiguity(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	found := 0
	for round := 0; round < 50; round++ {
		conns, fps := randomNetwork(r, 8, 150)
		for dst := 1; dst < 8; dst++ {
			req := journey.NewRequest("S0", fmt.Sprintf("S%d", dst), 0, journey.WithWindow(86400))
			_, it, ok := plan(t, conns, fps, req)
			if !ok {
				continue
			}
			found++
			require.NotEmpty(t, it.Legs)
			assert.True(t, it.Contiguous())
			assert.Equal(t, req.FromStop, it.Legs[0].FromStop)
			assert.Equal(t, req.ToStop, it.Legs[len(it.Legs)-1].ToStop)
			for _, l := range it.Legs {
				if l.Mode == journey.ModeTransit {
					assert.GreaterOrEqual(t, l.ArrTime, l.DepTime)
				}
			}
		}
	}
	assert.Positive(t, found)
}

func randomNetwork(r *rand.Rand, stops, n int) ([]gtfs.Connection, []gtfs.Footpath) {
	conns := make([]gtfs.Connection, 0, n)
	for i := 0; i < n; i++ {
		from := r.Intn(stops)
		to := r.Intn(stops)
		if from == to {
			continue
		}
		dep := r.Intn(7200)
		conns = append(conns, conn(fmt.Sprintf("S%d", from), fmt.Sprintf("S%d", to), fmt.Sprintf("T%d", r.Intn(20)), dep, dep+60+r.Intn(900)))
	}
	var fps []gtfs.Footpath
	for i := 0; i < stops; i++ {
		if r.Intn(3) == 0 {
			j := r.Intn(stops)
			if j != i {
				fps = append(fps, footpath(fmt.Sprintf("S%d", i), fmt.Sprintf("S%d", j), 30+r.Intn(600)))
			}
		}
	}
	return conns, fps
}
