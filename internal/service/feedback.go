package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"journey-planner/internal/publisher"
)

// ErrInvalidFeedback wraps validation failures of a rider report.
var ErrInvalidFeedback = errors.New("invalid feedback")

const unknownStop = "unknown"

// Feedback is a rider report submitted from the web form.
type Feedback struct {
	ID        string    `json:"id"`
	Line      string    `json:"line" validate:"max=32"`
	StopID    string    `json:"stop_id" validate:"max=64"`
	Type      string    `json:"type" validate:"max=32"`
	Text      string    `json:"text" validate:"required,max=2000"`
	CreatedAt time.Time `json:"created_at"`
}

type FeedbackMetrics interface {
	FeedbackInc()
}

// FeedbackStore keeps submitted reports in memory for the lifetime of the process.
type FeedbackStore struct {
	mu       sync.RWMutex
	items    []Feedback
	counts   map[string]int
	validate *validator.Validate
	metrics  FeedbackMetrics
}

func NewFeedbackStore(m FeedbackMetrics) *FeedbackStore {
	return &FeedbackStore{
		counts:   map[string]int{},
		validate: validator.New(),
		metrics:  m,
	}
}

// Add validates f, assigns it an ID and stores it.
func (st *FeedbackStore) Add(f Feedback, now time.Time) (Feedback, error) {
	f.Line = strings.TrimSpace(f.Line)
	f.StopID = strings.TrimSpace(f.StopID)
	f.Type = strings.TrimSpace(f.Type)
	f.Text = strings.TrimSpace(f.Text)
	if f.Type == "" {
		f.Type = "other"
	}
	if err := st.validate.Struct(f); err != nil {
		return Feedback{}, fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	f.ID = uuid.NewString()
	f.CreatedAt = now.UTC()

	st.mu.Lock()
	st.items = append(st.items, f)
	st.counts[countKey(f.StopID)]++
	st.mu.Unlock()

	if st.metrics != nil {
		st.metrics.FeedbackInc()
	}
	return f, nil
}

// List returns reports in submission order.
func (st *FeedbackStore) List() []Feedback {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Feedback, len(st.items))
	copy(out, st.items)
	return out
}

// Counts returns the number of reports per stop; reports without a stop
// are counted under "unknown".
func (st *FeedbackStore) Counts() map[string]int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]int, len(st.counts))
	for k, v := range st.counts {
		out[k] = v
	}
	return out
}

func countKey(stop string) string {
	if stop == "" {
		return unknownStop
	}
	return stop
}

// SubmitFeedback stores a report and publishes it.
func (s *Service) SubmitFeedback(f Feedback) (Feedback, error) {
	if s.Feedback == nil {
		return Feedback{}, errors.New("feedback store not configured")
	}
	saved, err := s.Feedback.Add(f, s.now())
	if err != nil {
		return Feedback{}, err
	}
	if s.Publisher != nil {
		ev := publisher.FeedbackEvent{
			ID:        saved.ID,
			Line:      saved.Line,
			StopID:    saved.StopID,
			Type:      saved.Type,
			Text:      saved.Text,
			Timestamp: saved.CreatedAt,
		}
		if err := s.Publisher.PublishFeedback(ev); err != nil {
			log.Printf("publish feedback %s: %v", saved.ID, err)
		}
	}
	return saved, nil
}
