package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"journey-planner/internal/api"
	"journey-planner/internal/config"
	"journey-planner/internal/db"
	"journey-planner/internal/fixtures"
	"journey-planner/internal/metrics"
	"journey-planner/internal/planner"
	"journey-planner/internal/publisher"
	"journey-planner/internal/realtime"
	"journey-planner/internal/service"
	"journey-planner/internal/timetable"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.RefreshInterval)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Timetable: without a database every plan is answered by the fallback.
	var (
		src       timetable.Source
		store     *timetable.Store
		refresher *timetable.Refresher
		watcher   *cityWatcher
	)
	if cfg.DatabaseURL != "" {
		store = timetable.NewStore(nil)
		src = store
		sqlDB, dbName := openTimetableDB(ctx, cfg)
		refresher = timetable.NewRefresher(store, db.Loader(sqlDB), cfg.RefreshInterval, refreshMetrics(mcol))
		refresher.Start(ctx)
		if cfg.City != "" && cfg.DBWatchInterval > 0 {
			watcher = newCityWatcher(cfg, sqlDB, dbName, refresher, mcol)
			watcher.Start(ctx)
		} else {
			defer sqlDB.Close()
		}
	} else {
		log.Printf("no timetable database configured, serving synthetic itineraries only")
	}

	// NATS is optional
	var pub service.Publisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
	}

	repo := fixtures.NewRepository(cfg.FixturesDir, time.Minute)
	scenario := realtime.NewScenario()
	var status realtime.StatusProvider = realtime.Empty{}
	var alerts realtime.AlertProvider = realtime.Empty{}
	switch {
	case cfg.DemoMode:
		fp := &realtime.FixtureProvider{Fixtures: repo, Scenario: scenario}
		status, alerts = fp, fp
	case cfg.GTFSRTTripsURL != "":
		rt := realtime.NewGTFSRTProvider(cfg.GTFSRTTripsURL, cfg.GTFSRTAlertsURL, cfg.GTFSRTTimeout)
		status, alerts = rt, rt
	}

	svc := &service.Service{
		Planner:   planner.New(src, plannerMetrics(mcol)),
		Status:    status,
		Alerts:    alerts,
		Scenario:  scenario,
		Fixtures:  repo,
		Timetable: store,
		Publisher: pub,
		Feedback:  service.NewFeedbackStore(feedbackMetrics(mcol)),
		DemoMode:  cfg.DemoMode,
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(svc, cfg.DefaultWindowSec).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Printf("api listening on %s (demo_mode=%t)", cfg.APIAddr, cfg.DemoMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("api server error: %v", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if watcher != nil {
		watcher.Stop()
	}
	if refresher != nil {
		refresher.Stop()
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

// openTimetableDB connects to the configured database, or to the latest
// import for CITY. Failures are logged and leave the timetable empty; plans
// then fall back until a later refresh succeeds.
func openTimetableDB(ctx context.Context, cfg *config.Config) (*sql.DB, string) {
	dsn, name := cfg.DatabaseURL, ""
	if cfg.City != "" {
		resolved, dbName, err := db.ResolveCity(ctx, cfg.DatabaseURL, cfg.City)
		if err != nil {
			log.Printf("resolve latest import for city %q: %v (using base database)", cfg.City, err)
		} else {
			dsn, name = resolved, dbName
			log.Printf("Using database %q for city %q", name, cfg.City)
		}
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Printf("db ping error: %v", err)
	}
	return sqlDB, name
}

func plannerMetrics(c *metrics.Collector) planner.Metrics {
	if c == nil {
		return nil
	}
	return c
}

func refreshMetrics(c *metrics.Collector) timetable.RefreshMetrics {
	if c == nil {
		return nil
	}
	return c
}

func feedbackMetrics(c *metrics.Collector) service.FeedbackMetrics {
	if c == nil {
		return nil
	}
	return c
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
