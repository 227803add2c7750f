package realtime

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// OnTimeThresholdSec is the mean delay at or below which a route counts as on time.
const OnTimeThresholdSec = 60

// GTFSRTProvider derives route statuses from a GTFS-Realtime TripUpdates feed
// and, optionally, a ServiceAlerts feed.
type GTFSRTProvider struct {
	TripUpdatesURL   string
	ServiceAlertsURL string
	Client           *http.Client
}

func NewGTFSRTProvider(tripUpdatesURL, serviceAlertsURL string, timeout time.Duration) *GTFSRTProvider {
	return &GTFSRTProvider{
		TripUpdatesURL:   tripUpdatesURL,
		ServiceAlertsURL: serviceAlertsURL,
		Client:           &http.Client{Timeout: timeout},
	}
}

func (p *GTFSRTProvider) FetchStatus(ctx context.Context) (Status, error) {
	tu, err := p.fetch(ctx, p.TripUpdatesURL)
	if err != nil {
		return Status{}, fmt.Errorf("trip updates: %w", err)
	}
	var alerts []ServiceAlert
	if p.ServiceAlertsURL != "" {
		sa, err := p.fetch(ctx, p.ServiceAlertsURL)
		if err != nil {
			return Status{}, fmt.Errorf("service alerts: %w", err)
		}
		alerts = alertsFromFeed(sa)
	}
	return statusFromFeed(tu, alerts), nil
}

func (p *GTFSRTProvider) FetchAlerts(ctx context.Context) ([]ServiceAlert, error) {
	if p.ServiceAlertsURL == "" {
		return []ServiceAlert{}, nil
	}
	fm, err := p.fetch(ctx, p.ServiceAlertsURL)
	if err != nil {
		return nil, fmt.Errorf("service alerts: %w", err)
	}
	return alertsFromFeed(fm), nil
}

func (p *GTFSRTProvider) fetch(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &fm, nil
}

// statusFromFeed averages each trip's current delay per route. A trip's
// delay is taken from its first stop time update carrying one, else from
// the trip-level delay.
func statusFromFeed(fm *gtfsrtpb.FeedMessage, alerts []ServiceAlert) Status {
	type acc struct {
		sum, n int
	}
	byRoute := map[string]*acc{}
	for _, e := range fm.GetEntity() {
		tu := e.GetTripUpdate()
		routeID := tu.GetTrip().GetRouteId()
		if tu == nil || routeID == "" {
			continue
		}
		delay, ok := tripDelay(tu)
		a := byRoute[routeID]
		if a == nil {
			a = &acc{}
			byRoute[routeID] = a
		}
		if ok {
			a.sum += delay
			a.n++
		}
	}
	alerted := map[string]bool{}
	for _, al := range alerts {
		for _, r := range al.RouteIDs {
			alerted[r] = true
			if byRoute[r] == nil {
				byRoute[r] = &acc{}
			}
		}
	}

	lines := make([]RouteStatus, 0, len(byRoute))
	for routeID, a := range byRoute {
		mean := 0.0
		if a.n > 0 {
			mean = float64(a.sum) / float64(a.n)
		}
		rs := RouteStatus{RouteID: routeID, Status: StatusOnTime}
		if mean > OnTimeThresholdSec {
			rs.Status = StatusDelayed
			rs.DelayMin = int(math.Round(mean / 60))
		}
		if alerted[routeID] {
			rs.Status = StatusAlert
		}
		lines = append(lines, rs)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].RouteID < lines[j].RouteID })
	return Status{Lines: lines}
}

func tripDelay(tu *gtfsrtpb.TripUpdate) (int, bool) {
	for _, stu := range tu.GetStopTimeUpdate() {
		if ev := stu.GetArrival(); ev != nil && ev.Delay != nil {
			return int(ev.GetDelay()), true
		}
		if ev := stu.GetDeparture(); ev != nil && ev.Delay != nil {
			return int(ev.GetDelay()), true
		}
	}
	if tu.Delay != nil {
		return int(tu.GetDelay()), true
	}
	return 0, false
}

func alertsFromFeed(fm *gtfsrtpb.FeedMessage) []ServiceAlert {
	out := []ServiceAlert{}
	for _, e := range fm.GetEntity() {
		a := e.GetAlert()
		if a == nil {
			continue
		}
		sa := ServiceAlert{
			ID:       e.GetId(),
			Severity: strings.ToLower(a.GetSeverityLevel().String()),
			Text:     translatedText(a.GetHeaderText()),
		}
		if d := translatedText(a.GetDescriptionText()); d != "" {
			if sa.Text != "" {
				sa.Text += ": "
			}
			sa.Text += d
		}
		seen := map[string]bool{}
		for _, ie := range a.GetInformedEntity() {
			if r := ie.GetRouteId(); r != "" && !seen[r] {
				seen[r] = true
				sa.RouteIDs = append(sa.RouteIDs, r)
			}
		}
		out = append(out, sa)
	}
	return out
}

// translatedText prefers an untagged or English translation.
func translatedText(ts *gtfsrtpb.TranslatedString) string {
	tr := ts.GetTranslation()
	if len(tr) == 0 {
		return ""
	}
	for _, t := range tr {
		if l := t.GetLanguage(); l == "" || strings.HasPrefix(strings.ToLower(l), "en") {
			return t.GetText()
		}
	}
	return tr[0].GetText()
}
