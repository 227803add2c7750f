package realtime

import (
	"context"
)

// Decoder reads a named fixture into v.
type Decoder interface {
	Decode(name string, v any) error
}

// FixtureProvider serves statuses and alerts from demo fixtures. The status
// file follows the current scenario.
type FixtureProvider struct {
	Fixtures Decoder
	Scenario *Scenario
}

func (p *FixtureProvider) FetchStatus(context.Context) (Status, error) {
	name := "demo_delays.json"
	if p.Scenario != nil && p.Scenario.Get() == ScenarioHeavy {
		name = "demo_delays_heavy.json"
	}
	var st Status
	if err := p.Fixtures.Decode(name, &st); err != nil {
		return Status{}, err
	}
	if st.Lines == nil {
		st.Lines = []RouteStatus{}
	}
	return st, nil
}

func (p *FixtureProvider) FetchAlerts(context.Context) ([]ServiceAlert, error) {
	var doc struct {
		Alerts []ServiceAlert `yaml:"alerts"`
	}
	if err := p.Fixtures.Decode("demo_alerts.json", &doc); err != nil {
		return nil, err
	}
	if doc.Alerts == nil {
		doc.Alerts = []ServiceAlert{}
	}
	return doc.Alerts, nil
}

// Empty is the provider used outside demo mode when no realtime feed is configured.
type Empty struct{}

func (Empty) FetchStatus(context.Context) (Status, error) { return Status{Lines: []RouteStatus{}}, nil }

func (Empty) FetchAlerts(context.Context) ([]ServiceAlert, error) { return []ServiceAlert{}, nil }
