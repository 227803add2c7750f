package main

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"journey-planner/internal/config"
	"journey-planner/internal/db"
	"journey-planner/internal/metrics"
	"journey-planner/internal/timetable"
)

// cityWatcher periodically checks for a newer import of the city's GTFS
// database and points the timetable refresher at it.
type cityWatcher struct {
	cfg       *config.Config
	refresher *timetable.Refresher
	mcol      *metrics.Collector

	sqlDB  *sql.DB
	dbName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newCityWatcher(cfg *config.Config, sqlDB *sql.DB, dbName string, r *timetable.Refresher, mcol *metrics.Collector) *cityWatcher {
	return &cityWatcher{cfg: cfg, refresher: r, mcol: mcol, sqlDB: sqlDB, dbName: dbName}
}

func (w *cityWatcher) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.DBWatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			w.check(ctx)
		}
	}()
}

// Stop ends the watch loop and closes the current database.
func (w *cityWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.sqlDB != nil {
		_ = w.sqlDB.Close()
	}
}

func (w *cityWatcher) check(ctx context.Context) {
	// 1) Ping current DB; if it fails, force re-resolve
	needSwitch := false
	if err := db.Ping(ctx, w.sqlDB); err != nil {
		log.Printf("db ping failed: %v, re-resolving city DB", err)
		w.switchInc("ping_failure")
		needSwitch = true
	}

	// 2) Always re-resolve latest import, compare db_name
	newDSN, newName, err := db.ResolveCity(ctx, w.cfg.DatabaseURL, w.cfg.City)
	if err != nil {
		log.Printf("resolve latest import error: %v", err)
		return
	}
	if newName != "" && newName != w.dbName {
		log.Printf("Detected updated DB for city %q: %q -> %q", w.cfg.City, w.dbName, newName)
		w.switchInc("update")
		needSwitch = true
	}
	if !needSwitch {
		return
	}

	newDB, err := db.Open(newDSN)
	if err != nil {
		log.Printf("open new DB error: %v", err)
		return
	}
	if err := db.Ping(ctx, newDB); err != nil {
		log.Printf("ping new DB error: %v", err)
		_ = newDB.Close()
		return
	}

	// Load from the new database before retiring the old one; on failure
	// the refresher keeps serving the previous timetable.
	prevLoader := db.Loader(w.sqlDB)
	w.refresher.SetLoader(db.Loader(newDB))
	if err := w.refresher.RefreshNow(ctx); err != nil {
		log.Printf("load timetable from %q failed (kind=%s): %v", newName, timetable.KindOf(err), err)
		w.refresher.SetLoader(prevLoader)
		_ = newDB.Close()
		return
	}
	_ = w.sqlDB.Close()
	w.sqlDB = newDB
	w.dbName = newName
	log.Printf("Switched to DB %q for city %q", w.dbName, w.cfg.City)
}

func (w *cityWatcher) switchInc(reason string) {
	if w.mcol != nil {
		w.mcol.DBSwitches.WithLabelValues(reason).Inc()
	}
}
