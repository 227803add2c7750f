package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"journey-planner/internal/gtfs"
	"journey-planner/internal/timetable"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadTimetable reads every trip hop, footpath and stop of the GTFS import
// and freezes them into an Index.
func LoadTimetable(ctx context.Context, db *sql.DB) (*timetable.Index, error) {
	if db == nil {
		return nil, timetable.Absent("load timetable", errors.New("no database configured"))
	}
	b := timetable.NewBuilder()
	if err := loadConnections(ctx, db, b); err != nil {
		return nil, err
	}
	if err := loadFootpaths(ctx, db, b); err != nil {
		return nil, err
	}
	if err := loadStops(ctx, db, b); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Loader adapts LoadTimetable for a timetable.Refresher.
func Loader(db *sql.DB) timetable.LoaderFunc {
	return func(ctx context.Context) (*timetable.Index, error) { return LoadTimetable(ctx, db) }
}

// loadConnections pairs consecutive stop_times of each trip into connections.
func loadConnections(ctx context.Context, db *sql.DB, b *timetable.Builder) error {
	q := `
SELECT st1.trip_id, t.route_id,
       st1.stop_id, COALESCE(st1.departure_time::text, st1.arrival_time::text, ''),
       st2.stop_id, COALESCE(st2.arrival_time::text, st2.departure_time::text, '')
FROM stop_times st1
JOIN stop_times st2
  ON st2.trip_id = st1.trip_id
 AND st2.stop_sequence = st1.stop_sequence + 1
JOIN trips t ON t.trip_id = st1.trip_id`

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return classify("query connections", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c gtfs.Connection
		var dep, arr string
		if err := rows.Scan(&c.TripID, &c.RouteID, &c.FromStop, &dep, &c.ToStop, &arr); err != nil {
			return classify("scan connection", err)
		}
		if c.DepTime, err = gtfs.ParseTime(dep); err != nil {
			return timetable.Mismatch("parse departure_time", fmt.Errorf("trip %s: %w", c.TripID, err))
		}
		if c.ArrTime, err = gtfs.ParseTime(arr); err != nil {
			return timetable.Mismatch("parse arrival_time", fmt.Errorf("trip %s: %w", c.TripID, err))
		}
		b.AddConnection(c)
	}
	if err := rows.Err(); err != nil {
		return classify("read connections", err)
	}
	return nil
}

// loadFootpaths reads the optional footpaths table. A missing table is not an error.
func loadFootpaths(ctx context.Context, db *sql.DB, b *timetable.Builder) error {
	cols, err := hasColumns(ctx, db, "public", "footpaths", "from_stop", "to_stop", "walk_sec", "distance_m")
	if err != nil {
		return classify("introspect footpaths columns", err)
	}
	if !cols["from_stop"] && !cols["to_stop"] && !cols["walk_sec"] {
		return nil
	}
	if !cols["from_stop"] || !cols["to_stop"] || !cols["walk_sec"] {
		return timetable.Mismatch("load footpaths", errors.New("footpaths table missing from_stop/to_stop/walk_sec"))
	}
	dist := "NULL::int"
	if cols["distance_m"] {
		dist = "distance_m::int"
	}
	q := `SELECT from_stop, to_stop, walk_sec::int, ` + dist + ` FROM footpaths`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return classify("query footpaths", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp gtfs.Footpath
		var d sql.NullInt64
		if err := rows.Scan(&fp.FromStop, &fp.ToStop, &fp.WalkSec, &d); err != nil {
			return classify("scan footpath", err)
		}
		if d.Valid {
			v := int(d.Int64)
			fp.DistanceM = &v
		}
		b.AddFootpath(fp)
	}
	if err := rows.Err(); err != nil {
		return classify("read footpaths", err)
	}
	return nil
}

func loadStops(ctx context.Context, db *sql.DB, b *timetable.Builder) error {
	// Prefer stop_lat/stop_lon, but support PostGIS stop_loc geography as fallback
	cols, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon", "stop_loc", "stop_name")
	if err != nil {
		return classify("introspect stops columns", err)
	}
	name := "''"
	if cols["stop_name"] {
		name = "COALESCE(stop_name, '')"
	}
	var q string
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		q = `SELECT stop_id, ` + name + `, COALESCE(stop_lat, 0), COALESCE(stop_lon, 0) FROM stops`
	case cols["stop_loc"]:
		q = `SELECT stop_id, ` + name + `,
                    COALESCE(ST_Y(stop_loc::geometry), 0),
                    COALESCE(ST_X(stop_loc::geometry), 0)
             FROM stops`
	default:
		q = `SELECT stop_id, ` + name + `, 0::float8, 0::float8 FROM stops`
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return classify("query stops", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s gtfs.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return classify("scan stop", err)
		}
		b.AddStop(s)
	}
	if err := rows.Err(); err != nil {
		return classify("read stops", err)
	}
	return nil
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}

// Postgres error classes that indicate the import does not have the expected shape.
var schemaErrorCodes = map[string]bool{
	"42P01": true, // undefined_table
	"42703": true, // undefined_column
	"42804": true, // datatype_mismatch
	"22007": true, // invalid_datetime_format
	"22P02": true, // invalid_text_representation
}

// classify wraps err as a timetable.SourceError of the matching kind.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && schemaErrorCodes[pgErr.Code] {
		return timetable.Mismatch(op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return timetable.Absent(op, err)
	}
	return timetable.Failed(op, err)
}
