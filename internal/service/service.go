// Package service is the application layer behind the HTTP API. It combines
// the planner, realtime providers, demo fixtures and rider feedback.
package service

import (
	"context"
	"log"
	"time"

	"journey-planner/internal/journey"
	"journey-planner/internal/planner"
	"journey-planner/internal/publisher"
	"journey-planner/internal/realtime"
	"journey-planner/internal/timetable"
)

// Publisher receives events for answered plans and accepted feedback.
type Publisher interface {
	PublishPlan(ev publisher.PlanEvent) error
	PublishFeedback(ev publisher.FeedbackEvent) error
}

// Fixtures is the subset of the fixture repository the service reads.
type Fixtures interface {
	Load(name string) (map[string]any, error)
	LoadIfExists(name string) (map[string]any, bool, error)
	Decode(name string, v any) error
}

type Service struct {
	Planner   planner.Planner
	Status    realtime.StatusProvider
	Alerts    realtime.AlertProvider
	Scenario  *realtime.Scenario
	Fixtures  Fixtures
	Timetable *timetable.Store
	Publisher Publisher
	Feedback  *FeedbackStore
	DemoMode  bool
	// Now is the wall clock used for live alternatives; defaults to time.Now.
	Now func() time.Time
}

// PlanResponse is the body of a plan answer.
type PlanResponse struct {
	Itineraries []journey.ItineraryJSON `json:"itineraries"`
}

// Plan answers req and publishes the answer when a publisher is configured.
func (s *Service) Plan(ctx context.Context, req journey.Request) PlanResponse {
	var res planner.Result
	if ex, ok := s.Planner.(planner.Explainer); ok {
		res = ex.Explain(ctx, req)
	} else {
		res = planner.Result{Itineraries: s.Planner.Plan(ctx, req)}
	}
	out := PlanResponse{Itineraries: journey.Records(res.Itineraries)}

	if s.Publisher != nil {
		ev := publisher.PlanEvent{
			FromStop:    req.FromStop,
			ToStop:      req.ToStop,
			DepartAt:    req.DepartAt,
			Source:      res.Outcome,
			Timestamp:   s.now().UTC(),
			Itineraries: out.Itineraries,
		}
		if err := s.Publisher.PublishPlan(ev); err != nil {
			log.Printf("publish plan %s->%s: %v", req.FromStop, req.ToStop, err)
		}
	}
	return out
}

// RouteStatus returns the per-route status lines. Outside demo mode without a
// realtime feed the list is empty.
func (s *Service) RouteStatus(ctx context.Context) (realtime.Status, error) {
	if s.Status == nil {
		return realtime.Empty{}.FetchStatus(ctx)
	}
	return s.Status.FetchStatus(ctx)
}

type AlertsResponse struct {
	Alerts []realtime.ServiceAlert `json:"alerts"`
}

func (s *Service) ServiceAlerts(ctx context.Context) (AlertsResponse, error) {
	p := s.Alerts
	if p == nil {
		p = realtime.Empty{}
	}
	al, err := p.FetchAlerts(ctx)
	if err != nil {
		return AlertsResponse{}, err
	}
	return AlertsResponse{Alerts: al}, nil
}

type Bulletin struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Text  string `json:"text" yaml:"text"`
}

type BulletinsResponse struct {
	Bulletins []Bulletin `json:"bulletins"`
}

// Bulletins are only published from fixtures; outside demo mode the list is empty.
func (s *Service) Bulletins() (BulletinsResponse, error) {
	out := BulletinsResponse{Bulletins: []Bulletin{}}
	if !s.DemoMode || s.Fixtures == nil {
		return out, nil
	}
	var doc struct {
		Bulletins []Bulletin `yaml:"bulletins"`
	}
	if err := s.Fixtures.Decode("demo_bulletins.json", &doc); err != nil {
		return out, err
	}
	if doc.Bulletins != nil {
		out.Bulletins = doc.Bulletins
	}
	return out, nil
}

// SetScenario switches the demo scenario and returns the one in effect. An
// unknown name leaves the scenario unchanged.
func (s *Service) SetScenario(name string) string {
	if s.Scenario == nil {
		return realtime.ScenarioNormal
	}
	cur, err := s.Scenario.Set(name)
	if err != nil {
		log.Printf("scenario unchanged (%s): %v", cur, err)
	}
	return cur
}

// Health summarizes the loaded timetable.
type Health struct {
	Status          string `json:"status"`
	TimetableLoaded bool   `json:"timetable_loaded"`
	Connections     int    `json:"connections"`
	Footpaths       int    `json:"footpaths"`
	Stops           int    `json:"stops"`
}

func (s *Service) Health() Health {
	h := Health{Status: "ok"}
	if s.Timetable == nil {
		return h
	}
	if ix := s.Timetable.Load(); ix != nil {
		st := ix.Stats()
		h.TimetableLoaded = true
		h.Connections = st.Connections
		h.Footpaths = st.Footpaths
		h.Stops = st.Stops
	}
	return h
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
