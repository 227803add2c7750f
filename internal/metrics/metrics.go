package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"journey-planner/internal/timetable"
)

type Collector struct {
	reg *prometheus.Registry

	Plans        *prometheus.CounterVec // outcome label: timetable|fallback
	Fallbacks    *prometheus.CounterVec // reason label: no_source|no_path|source_absent|read_failed|schema_mismatch
	PlanDuration prometheus.Histogram
	ScanDuration prometheus.Histogram
	ScannedConns prometheus.Histogram

	TimetableConnections prometheus.Gauge
	TimetableFootpaths   prometheus.Gauge
	TimetableStops       prometheus.Gauge
	TimetableReloads     *prometheus.CounterVec // result label: ok|error
	ReloadDuration       prometheus.Histogram
	DBSwitches           *prometheus.CounterVec // reason label: update|ping_failure

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	Feedback prometheus.Counter

	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_plans_total",
			Help: "Planning requests by outcome.",
		}, []string{"outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_fallbacks_total",
			Help: "Requests answered by the synthetic fallback, by reason.",
		}, []string{"reason"}),
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_plan_duration_seconds",
			Help:    "Duration of a planning call including timetable reads.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_scan_duration_seconds",
			Help:    "Duration of the connection scan.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		ScannedConns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_scanned_connections",
			Help:    "Connections examined per scan.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		TimetableConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_connections",
			Help: "Connections in the loaded timetable.",
		}),
		TimetableFootpaths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_footpaths",
			Help: "Footpaths in the loaded timetable.",
		}),
		TimetableStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_stops",
			Help: "Stops in the loaded timetable.",
		}),
		TimetableReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_timetable_reloads_total",
			Help: "Timetable reload attempts by result and error kind.",
		}, []string{"result"}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_timetable_reload_duration_seconds",
			Help:    "Duration of a timetable reload.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_db_switches_total",
			Help: "Number of database switches.",
		}, []string{"reason"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		Feedback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_feedback_submissions_total",
			Help: "Rider feedback reports accepted.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_refresh_interval_seconds",
			Help: "Timetable refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Plans, c.Fallbacks, c.PlanDuration, c.ScanDuration, c.ScannedConns,
		c.TimetableConnections, c.TimetableFootpaths, c.TimetableStops,
		c.TimetableReloads, c.ReloadDuration, c.DBSwitches,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.Feedback, c.RefreshInterval,
	)
	c.RefreshInterval.Set(refreshInterval.Seconds())
	return c
}

func (c *Collector) PlanObserved(outcome string, d time.Duration) {
	c.Plans.WithLabelValues(outcome).Inc()
	c.PlanDuration.Observe(d.Seconds())
}

func (c *Collector) FallbackInc(reason string) { c.Fallbacks.WithLabelValues(reason).Inc() }

func (c *Collector) ScanObserved(connections int, d time.Duration) {
	c.ScannedConns.Observe(float64(connections))
	c.ScanDuration.Observe(d.Seconds())
}

func (c *Collector) ReloadObserved(err error, st timetable.Stats, d time.Duration) {
	c.ReloadDuration.Observe(d.Seconds())
	if err != nil {
		c.TimetableReloads.WithLabelValues(timetable.KindOf(err).String()).Inc()
		return
	}
	c.TimetableReloads.WithLabelValues("ok").Inc()
	c.TimetableConnections.Set(float64(st.Connections))
	c.TimetableFootpaths.Set(float64(st.Footpaths))
	c.TimetableStops.Set(float64(st.Stops))
}

func (c *Collector) FeedbackInc() { c.Feedback.Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
