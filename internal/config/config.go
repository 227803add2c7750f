package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// DatabaseURL is empty when no timetable database is configured; the
	// planner then serves synthetic itineraries only.
	DatabaseURL      string
	City             string
	DBWatchInterval  time.Duration
	RefreshInterval  time.Duration
	APIAddr          string
	MetricsAddr      string
	DemoMode         bool
	FixturesDir      string
	DefaultWindowSec int
	NATSURL          string
	NATSSubject      string
	GTFSRTTripsURL   string
	GTFSRTAlertsURL  string
	GTFSRTTimeout    time.Duration
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars when PGDATABASE or CITY is set
	cfg.City = firstNonEmpty(getenv("CITY"), getenv("CITY_NAME"))
	cfg.DatabaseURL = firstNonEmpty(getenv("DATABASE_URL"), getenv("PG_DSN"))
	if cfg.DatabaseURL == "" {
		db := getenv("PGDATABASE")
		if db == "" && cfg.City != "" {
			db = "postgres"
		}
		if db != "" {
			host := get("PGHOST", "127.0.0.1")
			port := get("PGPORT", "5432")
			user := get("PGUSER", "postgres")
			pass := getenv("PGPASSWORD")
			sslmode := get("PGSSLMODE", "disable")
			auth := urlEscape(user)
			if pass != "" {
				auth += ":" + urlEscape(pass)
			}
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", auth, host, port, db, sslmode)
		}
	}

	var err error
	if cfg.RefreshInterval, err = seconds(get("TIMETABLE_REFRESH_INTERVAL_SEC", "900"), "TIMETABLE_REFRESH_INTERVAL_SEC"); err != nil {
		return nil, err
	}
	mins, err := strconv.Atoi(get("DB_WATCH_INTERVAL_MIN", "30"))
	if err != nil || mins < 0 {
		return nil, fmt.Errorf("invalid DB_WATCH_INTERVAL_MIN: %q", getenv("DB_WATCH_INTERVAL_MIN"))
	}
	cfg.DBWatchInterval = time.Duration(mins) * time.Minute

	cfg.DefaultWindowSec, err = strconv.Atoi(get("DEFAULT_WINDOW_SEC", "5400"))
	if err != nil || cfg.DefaultWindowSec <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_WINDOW_SEC: %q", getenv("DEFAULT_WINDOW_SEC"))
	}

	cfg.APIAddr = get("API_ADDR", ":8000")
	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = getenv("METRICS_ADDR")
	cfg.DemoMode = parseBool(get("DEMO_MODE", "true"))
	cfg.FixturesDir = get("FIXTURES_DIR", "fixtures")

	// NATS is optional; empty URL disables event publishing.
	cfg.NATSURL = getenv("NATS_URL")
	cfg.NATSSubject = get("NATS_SUBJECT_PREFIX", "planner")

	cfg.GTFSRTTripsURL = getenv("GTFSRT_TRIP_UPDATES_URL")
	cfg.GTFSRTAlertsURL = getenv("GTFSRT_SERVICE_ALERTS_URL")
	ms, err := strconv.Atoi(get("GTFSRT_TIMEOUT_MS", "5000"))
	if err != nil || ms <= 0 {
		return nil, fmt.Errorf("invalid GTFSRT_TIMEOUT_MS: %q", getenv("GTFSRT_TIMEOUT_MS"))
	}
	cfg.GTFSRTTimeout = time.Duration(ms) * time.Millisecond

	return cfg, nil
}

// seconds parses a non-negative number of seconds; zero disables the feature.
func seconds(v, key string) (time.Duration, error) {
	sec, err := strconv.Atoi(v)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
