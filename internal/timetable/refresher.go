package timetable

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// LoaderFunc builds a fresh Index from the underlying store.
type LoaderFunc func(ctx context.Context) (*Index, error)

type RefreshMetrics interface {
	ReloadObserved(err error, st Stats, d time.Duration)
}

// Refresher periodically rebuilds the timetable and swaps it into a Store.
// A failed reload keeps the previous snapshot in place.
type Refresher struct {
	store    *Store
	interval time.Duration
	metrics  RefreshMetrics

	mu     sync.Mutex
	load   LoaderFunc
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(store *Store, load LoaderFunc, interval time.Duration, m RefreshMetrics) *Refresher {
	return &Refresher{store: store, load: load, interval: interval, metrics: m}
}

// SetLoader replaces the loader used by subsequent refreshes.
func (r *Refresher) SetLoader(load LoaderFunc) {
	r.mu.Lock()
	r.load = load
	r.mu.Unlock()
}

// RefreshNow loads a new Index and installs it on success.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	r.mu.Lock()
	load := r.load
	r.mu.Unlock()
	if load == nil {
		return errors.New("no timetable loader configured")
	}
	start := time.Now()
	ix, err := load(ctx)
	if err == nil && ix == nil {
		err = errors.New("loader returned no timetable")
	}
	var st Stats
	if err == nil {
		st = ix.Stats()
		r.store.Swap(ix)
		log.Printf("timetable loaded: connections=%d footpaths=%d stops=%d dropped=%d in %s",
			st.Connections, st.Footpaths, st.Stops, st.Dropped, time.Since(start).Round(time.Millisecond))
	}
	if r.metrics != nil {
		r.metrics.ReloadObserved(err, st, time.Since(start))
	}
	return err
}

// Start performs an immediate refresh and then reloads every interval until
// Stop is called or parent is cancelled.
func (r *Refresher) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.RefreshNow(ctx); err != nil {
			log.Printf("initial timetable load error (kind=%s): %v", KindOf(err), err)
		}
		if r.interval <= 0 {
			return
		}
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.RefreshNow(ctx); err != nil {
					log.Printf("timetable refresh error (kind=%s): %v", KindOf(err), err)
				}
			}
		}
	}()
}

func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
