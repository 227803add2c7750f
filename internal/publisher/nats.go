package publisher

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"journey-planner/internal/journey"
)

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("journey-planner"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PlanEvent is published for every answered planning request.
type PlanEvent struct {
	FromStop    string                  `json:"fromStop"`
	ToStop      string                  `json:"toStop"`
	DepartAt    int                     `json:"departAt"`
	Source      string                  `json:"source"` // timetable|fallback
	Timestamp   time.Time               `json:"timestamp"`
	Itineraries []journey.ItineraryJSON `json:"itineraries"`
}

// FeedbackEvent mirrors a rider report accepted by the API.
type FeedbackEvent struct {
	ID        string    `json:"id"`
	Line      string    `json:"line"`
	StopID    string    `json:"stopId"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *NATSPublisher) PublishPlan(ev PlanEvent) error {
	return p.publish(PlanSubject(p.prefix, ev.FromStop, ev.ToStop), ev)
}

func (p *NATSPublisher) PublishFeedback(ev FeedbackEvent) error {
	return p.publish(FeedbackSubject(p.prefix, ev.StopID), ev)
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// PlanSubject is <prefix>.plans.<from>.<to>.
func PlanSubject(prefix, from, to string) string {
	return strings.Join([]string{subjectToken(prefix), "plans", subjectToken(from), subjectToken(to)}, ".")
}

// FeedbackSubject is <prefix>.feedback.<stop>, with "unknown" for reports without a stop.
func FeedbackSubject(prefix, stop string) string {
	if strings.TrimSpace(stop) == "" {
		stop = "unknown"
	}
	return strings.Join([]string{subjectToken(prefix), "feedback", subjectToken(stop)}, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
