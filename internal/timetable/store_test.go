package timetable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"absent", Absent("op", base), SourceAbsent},
		{"failed", Failed("op", base), ReadFailed},
		{"mismatch", Mismatch("op", base), SchemaMismatch},
		{"wrapped", fmt.Errorf("outer: %w", Mismatch("op", base)), SchemaMismatch},
		{"untyped", base, ReadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
	assert.ErrorIs(t, Failed("op", base), base)
	assert.Equal(t, "schema_mismatch", SchemaMismatch.String())
}

func TestStore_EmptyIsAbsent(t *testing.T) {
	s := NewStore(nil)
	_, err := s.LoadConnections(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Equal(t, SourceAbsent, KindOf(err))
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.LoadFootpaths(context.Background())
	assert.Equal(t, SourceAbsent, KindOf(err))
	assert.Nil(t, s.StopsNearby("A", 100))
}

func TestStore_SwapReplacesSnapshot(t *testing.T) {
	b1 := NewBuilder()
	b1.AddConnection(conn("A", "B", "OLD", 10, 20))
	old := b1.Build()
	s := NewStore(old)

	b2 := NewBuilder()
	b2.AddConnection(conn("A", "B", "NEW", 10, 20))
	b2.AddConnection(conn("B", "C", "NEW", 20, 30))
	prev := s.Swap(b2.Build())
	assert.Same(t, old, prev)

	got, err := s.LoadConnections(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "NEW", got[0].TripID)
	// A reader holding the old snapshot still sees a complete timetable.
	assert.Len(t, prev.Connections(), 1)
}

func TestStore_ConcurrentReadersDuringSwap(t *testing.T) {
	mk := func(n int) *Index {
		b := NewBuilder()
		for i := 0; i < n; i++ {
			b.AddConnection(conn("A", "B", "T", i, i+1))
		}
		return b.Build()
	}
	s := NewStore(mk(10))
	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := s.LoadConnections(context.Background(), 0, 1000)
				if err != nil {
					t.Error(err)
					return
				}
				if n := len(got); n != 10 && n != 20 {
					t.Errorf("observed partial timetable with %d connections", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			s.Swap(mk(20))
		} else {
			s.Swap(mk(10))
		}
	}
	wg.Wait()
}

type recordedReload struct {
	err error
	st  Stats
}

type fakeRefreshMetrics struct {
	mu   sync.Mutex
	seen []recordedReload
}

func (f *fakeRefreshMetrics) ReloadObserved(err error, st Stats, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedReload{err, st})
}

func TestRefresher_KeepsPreviousOnFailure(t *testing.T) {
	b := NewBuilder()
	b.AddConnection(conn("A", "B", "T1", 10, 20))
	good := b.Build()

	s := NewStore(nil)
	m := &fakeRefreshMetrics{}
	calls := 0
	r := NewRefresher(s, func(context.Context) (*Index, error) {
		calls++
		if calls == 1 {
			return good, nil
		}
		return nil, Failed("load", errors.New("db down"))
	}, 0, m)

	require.NoError(t, r.RefreshNow(context.Background()))
	assert.Same(t, good, s.Load())

	err := r.RefreshNow(context.Background())
	require.Error(t, err)
	assert.Same(t, good, s.Load(), "failed reload must not clear the timetable")

	require.Len(t, m.seen, 2)
	assert.NoError(t, m.seen[0].err)
	assert.Equal(t, 1, m.seen[0].st.Connections)
	assert.Error(t, m.seen[1].err)
}

func TestRefresher_SetLoaderAndStartStop(t *testing.T) {
	s := NewStore(nil)
	r := NewRefresher(s, nil, 0, nil)
	assert.Error(t, r.RefreshNow(context.Background()))

	b := NewBuilder()
	b.AddConnection(conn("A", "B", "T1", 10, 20))
	ix := b.Build()
	r.SetLoader(func(context.Context) (*Index, error) { return ix, nil })

	r.Start(context.Background())
	r.Stop()
	assert.Same(t, ix, s.Load())
}
