package gtfs

import (
	"fmt"
	"strconv"
	"strings"
)

// Connection is one scheduled hop between two consecutive stops of a trip.
type Connection struct {
	DepTime  int // seconds since midnight (can exceed 24h)
	ArrTime  int // seconds since midnight (can exceed 24h)
	FromStop string
	ToStop   string
	TripID   string
	RouteID  string
}

// Footpath is a directed walking link between two stops.
type Footpath struct {
	FromStop  string
	ToStop    string
	WalkSec   int
	DistanceM *int // nil when the source has no distance
}

type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// HasCoords reports whether the stop carries a usable position.
func (s Stop) HasCoords() bool { return s.Lat != 0 || s.Lon != 0 }

// ParseTime parses HH:MM:SS (or HH:MM) into seconds since midnight.
// Hours may be >= 24 for service running past midnight; no modulo is applied.
func ParseTime(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	vals := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		vals[i] = n
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}

// FormatTime renders seconds since midnight as HH:MM:SS, keeping hours >= 24.
func FormatTime(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec/60)%60, sec%60)
}
