package timetable

import (
	"context"
	"sync/atomic"

	"journey-planner/internal/gtfs"
)

// Store holds the current Index. Readers always see a complete snapshot;
// refreshes replace the whole Index atomically.
type Store struct {
	cur atomic.Pointer[Index]
}

var _ Source = (*Store)(nil)

func NewStore(ix *Index) *Store {
	s := &Store{}
	if ix != nil {
		s.cur.Store(ix)
	}
	return s
}

// Load returns the current snapshot, or nil before the first successful load.
func (s *Store) Load() *Index { return s.cur.Load() }

// Swap installs ix and returns the previous snapshot.
func (s *Store) Swap(ix *Index) *Index { return s.cur.Swap(ix) }

func (s *Store) LoadConnections(ctx context.Context, windowStart, windowEnd int) ([]gtfs.Connection, error) {
	ix := s.cur.Load()
	if ix == nil {
		return nil, Absent("load connections", ErrNotLoaded)
	}
	return ix.LoadConnections(ctx, windowStart, windowEnd)
}

func (s *Store) LoadFootpaths(ctx context.Context) (Footpaths, error) {
	ix := s.cur.Load()
	if ix == nil {
		return Footpaths{}, Absent("load footpaths", ErrNotLoaded)
	}
	return ix.LoadFootpaths(ctx)
}

func (s *Store) StopsNearby(stopID string, radiusM float64) []Nearby {
	ix := s.cur.Load()
	if ix == nil {
		return nil
	}
	return ix.StopsNearby(stopID, radiusM)
}
