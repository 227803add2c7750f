package journey

const (
	DefaultWindowSec    = 90 * 60
	DefaultMaxTransfers = 3
)

// Request is a single planning query. Times are seconds since local midnight.
type Request struct {
	FromStop     string
	ToStop       string
	DepartAt     int
	WindowSec    int
	MaxTransfers int // accepted and validated, not enforced by the scan
}

type Option func(*Request)

func WithWindow(sec int) Option { return func(r *Request) { r.WindowSec = sec } }

func WithMaxTransfers(n int) Option { return func(r *Request) { r.MaxTransfers = n } }

// NewRequest builds a Request with defaults applied.
func NewRequest(from, to string, departAt int, opts ...Option) Request {
	r := Request{
		FromStop:     from,
		ToStop:       to,
		DepartAt:     departAt,
		WindowSec:    DefaultWindowSec,
		MaxTransfers: DefaultMaxTransfers,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// WindowEnd is the last departure time considered by a scan.
func (r Request) WindowEnd() int { return r.DepartAt + r.WindowSec }

type Mode string

const (
	ModeTransit Mode = "transit"
	ModeWalk    Mode = "walk"
)

type Leg struct {
	Mode      Mode   `json:"mode"`
	FromStop  string `json:"from_stop"`
	ToStop    string `json:"to_stop"`
	DepTime   int    `json:"dep_time"`
	ArrTime   int    `json:"arr_time"`
	RouteID   string `json:"route_id,omitempty"`
	TripID    string `json:"trip_id,omitempty"`
	DistanceM *int   `json:"distance_m,omitempty"` // walk legs only
}

type Itinerary struct {
	Legs []Leg
}

// TotalTime is the span from the first departure to the last arrival.
func (it Itinerary) TotalTime() int {
	if len(it.Legs) == 0 {
		return 0
	}
	return it.Legs[len(it.Legs)-1].ArrTime - it.Legs[0].DepTime
}

// Transfers counts changes of trip between consecutive transit legs.
// Walk legs are skipped, so a walk between two legs of the same trip is not a transfer.
func (it Itinerary) Transfers() int {
	n := 0
	last := ""
	seen := false
	for _, l := range it.Legs {
		if l.Mode != ModeTransit {
			continue
		}
		if seen && l.TripID != last {
			n++
		}
		last = l.TripID
		seen = true
	}
	return n
}

// Contiguous reports whether every leg starts where the previous one ended.
func (it Itinerary) Contiguous() bool {
	for i := 1; i < len(it.Legs); i++ {
		if it.Legs[i-1].ToStop != it.Legs[i].FromStop {
			return false
		}
	}
	return true
}

// ItineraryJSON is the wire shape of an itinerary.
type ItineraryJSON struct {
	TotalTime int   `json:"total_time"`
	Transfers int   `json:"transfers"`
	Legs      []Leg `json:"legs"`
}

func (it Itinerary) Record() ItineraryJSON {
	legs := it.Legs
	if legs == nil {
		legs = []Leg{}
	}
	return ItineraryJSON{TotalTime: it.TotalTime(), Transfers: it.Transfers(), Legs: legs}
}

// Records converts a plan result into wire records, never returning nil.
func Records(its []Itinerary) []ItineraryJSON {
	out := make([]ItineraryJSON, 0, len(its))
	for _, it := range its {
		out = append(out, it.Record())
	}
	return out
}

func IntPtr(v int) *int { return &v }
