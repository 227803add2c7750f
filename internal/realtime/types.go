// Package realtime reports per-route service status and alerts. Statuses are
// informational only and never feed into journey planning.
package realtime

import (
	"context"
	"fmt"
	"sync"
)

type RouteStatus struct {
	RouteID  string `json:"route_id" yaml:"route_id"`
	Status   string `json:"status" yaml:"status"` // on_time | delayed | alert
	DelayMin int    `json:"delay_min" yaml:"delay_min"`
}

const (
	StatusOnTime  = "on_time"
	StatusDelayed = "delayed"
	StatusAlert   = "alert"
)

type Status struct {
	Scenario string        `json:"scenario,omitempty" yaml:"scenario"`
	Lines    []RouteStatus `json:"lines" yaml:"lines"`
}

type ServiceAlert struct {
	ID       string   `json:"id" yaml:"id"`
	Severity string   `json:"severity" yaml:"severity"`
	Text     string   `json:"text" yaml:"text"`
	RouteIDs []string `json:"route_ids,omitempty" yaml:"route_ids"`
}

type StatusProvider interface {
	FetchStatus(ctx context.Context) (Status, error)
}

type AlertProvider interface {
	FetchAlerts(ctx context.Context) ([]ServiceAlert, error)
}

// Demo scenarios.
const (
	ScenarioNormal = "normal"
	ScenarioHeavy  = "heavy"
)

// Scenario is the demo disruption level owned by one server instance.
type Scenario struct {
	mu   sync.RWMutex
	name string
}

func NewScenario() *Scenario { return &Scenario{name: ScenarioNormal} }

func (s *Scenario) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Set switches to name if it is a known scenario and returns the scenario in effect.
func (s *Scenario) Set(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case ScenarioNormal, ScenarioHeavy:
		s.name = name
		return s.name, nil
	default:
		return s.name, fmt.Errorf("unknown scenario %q", name)
	}
}
