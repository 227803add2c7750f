package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// WithDBName returns dsn with its database path replaced.
// Supports postgres:// and postgresql:// schemes; a DSN without a scheme is
// treated as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", errors.New("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// LatestImport returns the db_name of the newest successful GTFS import whose
// name matches city, read from public.latest_successful_imports.
func LatestImport(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", errors.New("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var name sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("no database found for city like %q", city)
		}
		return "", err
	}
	if !name.Valid || name.String == "" {
		return "", fmt.Errorf("empty db_name for city like %q", city)
	}
	return name.String, nil
}

// ResolveCity connects to the cluster's "postgres" database, looks up the
// latest import for city and returns the DSN and name of that database.
func ResolveCity(ctx context.Context, baseDSN, city string) (dsn, dbName string, err error) {
	rootDSN, err := WithDBName(baseDSN, "postgres")
	if err != nil {
		return "", "", fmt.Errorf("compose meta DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", "", fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", "", fmt.Errorf("ping meta db: %w", err)
	}
	dbName, err = LatestImport(ctx, meta, city)
	if err != nil {
		return "", "", err
	}
	dsn, err = WithDBName(baseDSN, dbName)
	if err != nil {
		return "", "", err
	}
	return dsn, dbName, nil
}
