package planner

import (
	"context"
	"log"
	"time"

	"journey-planner/internal/csa"
	"journey-planner/internal/journey"
	"journey-planner/internal/timetable"
)

// Planner computes itineraries for a request. Implementations never fail for
// a well-formed request; the worst case is the fallback itinerary.
type Planner interface {
	Plan(ctx context.Context, req journey.Request) []journey.Itinerary
}

// Fallback reasons reported to Metrics.
const (
	ReasonNoSource = "no_source"
	ReasonNoPath   = "no_path"
)

type Metrics interface {
	PlanObserved(outcome string, d time.Duration)
	FallbackInc(reason string)
	ScanObserved(connections int, d time.Duration)
}

// Plan outcomes.
const (
	OutcomeTimetable = "timetable"
	OutcomeFallback  = "fallback"
)

// Result is a plan answer together with how it was produced.
type Result struct {
	Itineraries []journey.Itinerary
	Outcome     string // OutcomeTimetable or OutcomeFallback
	Reason      string // fallback reason, empty for timetable answers
}

// Explainer is implemented by planners that report their outcome.
type Explainer interface {
	Explain(ctx context.Context, req journey.Request) Result
}

// New picks the timetable-backed planner when a source is configured and
// the demo planner otherwise.
func New(src timetable.Source, m Metrics) Planner {
	if src == nil {
		return &DemoPlanner{Metrics: m}
	}
	return &CSAPlanner{Source: src, Metrics: m}
}

// DemoPlanner serves only synthetic itineraries.
type DemoPlanner struct {
	Metrics Metrics
}

func (p *DemoPlanner) Plan(ctx context.Context, req journey.Request) []journey.Itinerary {
	return p.Explain(ctx, req).Itineraries
}

func (p *DemoPlanner) Explain(_ context.Context, req journey.Request) Result {
	start := time.Now()
	its := Fallback(req)
	if p.Metrics != nil {
		p.Metrics.FallbackInc(ReasonNoSource)
		p.Metrics.PlanObserved(OutcomeFallback, time.Since(start))
	}
	return Result{Itineraries: its, Outcome: OutcomeFallback, Reason: ReasonNoSource}
}

// CSAPlanner scans a timetable source and falls back when the source is
// unusable or no path exists in the window.
type CSAPlanner struct {
	Source  timetable.Source
	Metrics Metrics
}

func (p *CSAPlanner) Plan(ctx context.Context, req journey.Request) []journey.Itinerary {
	return p.Explain(ctx, req).Itineraries
}

func (p *CSAPlanner) Explain(ctx context.Context, req journey.Request) Result {
	start := time.Now()
	its, reason := p.plan(ctx, req)
	res := Result{Itineraries: its, Outcome: OutcomeTimetable}
	if its == nil {
		res = Result{Itineraries: Fallback(req), Outcome: OutcomeFallback, Reason: reason}
		if p.Metrics != nil {
			p.Metrics.FallbackInc(reason)
		}
	}
	if p.Metrics != nil {
		p.Metrics.PlanObserved(res.Outcome, time.Since(start))
	}
	return res
}

// plan returns nil and the fallback reason when no real itinerary is found.
func (p *CSAPlanner) plan(ctx context.Context, req journey.Request) ([]journey.Itinerary, string) {
	if p.Source == nil {
		return nil, ReasonNoSource
	}
	conns, err := p.Source.LoadConnections(ctx, req.DepartAt, req.WindowEnd())
	if err != nil {
		return nil, p.sourceFailure(req, err)
	}
	foot, err := p.Source.LoadFootpaths(ctx)
	if err != nil {
		return nil, p.sourceFailure(req, err)
	}

	scanStart := time.Now()
	res := csa.Scan(req, conns, foot)
	if p.Metrics != nil {
		p.Metrics.ScanObserved(res.Scanned, time.Since(scanStart))
	}

	it, ok := csa.Reconstruct(req, res)
	if !ok {
		log.Printf("plan %s->%s at %d: no path within %ds (%d connections scanned), using fallback",
			req.FromStop, req.ToStop, req.DepartAt, req.WindowSec, res.Scanned)
		return nil, ReasonNoPath
	}
	return []journey.Itinerary{it}, ""
}

func (p *CSAPlanner) sourceFailure(req journey.Request, err error) string {
	kind := timetable.KindOf(err)
	if kind == timetable.SourceAbsent {
		log.Printf("plan %s->%s: timetable unavailable, using fallback: %v", req.FromStop, req.ToStop, err)
	} else {
		log.Printf("plan %s->%s: timetable read error (kind=%s), using fallback: %v", req.FromStop, req.ToStop, kind, err)
	}
	return kind.String()
}
