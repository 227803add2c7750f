// Package api exposes the planner service over HTTP under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"journey-planner/internal/journey"
	"journey-planner/internal/service"
)

const Prefix = "/api/v1"

type Server struct {
	svc              *service.Service
	validate         *validator.Validate
	defaultWindowSec int
}

func NewServer(svc *service.Service, defaultWindowSec int) *Server {
	if defaultWindowSec <= 0 {
		defaultWindowSec = journey.DefaultWindowSec
	}
	return &Server{svc: svc, validate: validator.New(), defaultWindowSec: defaultWindowSec}
}

// Router returns the API routes with CORS and request logging applied.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(cors, logRequests)

	api := r.PathPrefix(Prefix).Subrouter()
	api.HandleFunc("/plan", s.handlePlan).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/alerts", s.handleAlerts).Methods("GET")
	api.HandleFunc("/alternatives", s.handleAlternatives).Methods("GET")
	api.HandleFunc("/bulletins", s.handleBulletins).Methods("GET")
	api.HandleFunc("/_demo/scenario", s.handleScenario).Methods("POST")
	api.HandleFunc("/feedback", s.handleSubmitFeedback).Methods("POST")
	api.HandleFunc("/feedback", s.handleListFeedback).Methods("GET")
	api.HandleFunc("/feedback/counts", s.handleFeedbackCounts).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	return r
}

type planQuery struct {
	FromStop     string `validate:"required"`
	ToStop       string `validate:"required"`
	DepartAt     int    `validate:"gte=0"`
	WindowSec    int    `validate:"gt=0"`
	MaxTransfers int    `validate:"gte=0"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pq := planQuery{
		FromStop:     strings.TrimSpace(q.Get("from_stop")),
		ToStop:       strings.TrimSpace(q.Get("to_stop")),
		WindowSec:    s.defaultWindowSec,
		MaxTransfers: journey.DefaultMaxTransfers,
	}
	var err error
	if q.Get("depart_at") == "" {
		httpError(w, http.StatusBadRequest, "depart_at is required")
		return
	}
	if pq.DepartAt, err = queryInt(q.Get("depart_at"), "depart_at"); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := q.Get("window_sec"); v != "" {
		if pq.WindowSec, err = queryInt(v, "window_sec"); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if v := q.Get("max_transfers"); v != "" {
		if pq.MaxTransfers, err = queryInt(v, "max_transfers"); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.validate.Struct(pq); err != nil {
		httpError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	req := journey.NewRequest(pq.FromStop, pq.ToStop, pq.DepartAt,
		journey.WithWindow(pq.WindowSec), journey.WithMaxTransfers(pq.MaxTransfers))
	writeJSON(w, s.svc.Plan(r.Context(), req))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.RouteStatus(r.Context())
	if err != nil {
		log.Printf("status: %v", err)
		httpError(w, http.StatusBadGateway, "status unavailable")
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	al, err := s.svc.ServiceAlerts(r.Context())
	if err != nil {
		log.Printf("alerts: %v", err)
		httpError(w, http.StatusBadGateway, "alerts unavailable")
		return
	}
	writeJSON(w, al)
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aq := service.AlternativesQuery{
		FromStop:  strings.TrimSpace(q.Get("from_stop")),
		RadiusM:   service.DefaultRadiusM,
		WindowMin: service.DefaultWindowMin,
	}
	if aq.FromStop == "" {
		httpError(w, http.StatusBadRequest, "from_stop is required")
		return
	}
	var err error
	if v := q.Get("radius_m"); v != "" {
		if aq.RadiusM, err = queryInt(v, "radius_m"); err != nil || aq.RadiusM <= 0 {
			httpError(w, http.StatusBadRequest, "invalid radius_m")
			return
		}
	}
	if v := q.Get("window_min"); v != "" {
		if aq.WindowMin, err = queryInt(v, "window_min"); err != nil || aq.WindowMin <= 0 {
			httpError(w, http.StatusBadRequest, "invalid window_min")
			return
		}
	}
	if v := q.Get("at"); v != "" {
		at, err := queryInt(v, "at")
		if err != nil || at < 0 {
			httpError(w, http.StatusBadRequest, "invalid at")
			return
		}
		aq.At = &at
	}
	doc, err := s.svc.Alternatives(r.Context(), aq)
	if err != nil {
		log.Printf("alternatives from %s: %v", aq.FromStop, err)
		httpError(w, http.StatusInternalServerError, "alternatives unavailable")
		return
	}
	writeJSON(w, doc)
}

func (s *Server) handleBulletins(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Bulletins()
	if err != nil {
		log.Printf("bulletins: %v", err)
		httpError(w, http.StatusInternalServerError, "bulletins unavailable")
		return
	}
	writeJSON(w, b)
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"scenario": s.svc.SetScenario(r.URL.Query().Get("s"))})
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var f service.Feedback
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&f); err != nil {
			httpError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid form")
			return
		}
		f = service.Feedback{
			Line:   r.PostForm.Get("line"),
			StopID: r.PostForm.Get("stop_id"),
			Type:   r.PostForm.Get("type"),
			Text:   r.PostForm.Get("text"),
		}
	}
	saved, err := s.svc.SubmitFeedback(f)
	if errors.Is(err, service.ErrInvalidFeedback) {
		httpError(w, http.StatusBadRequest, "Please add a short description.")
		return
	}
	if err != nil {
		log.Printf("feedback: %v", err)
		httpError(w, http.StatusInternalServerError, "feedback unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(saved)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items := []service.Feedback{}
	if s.svc.Feedback != nil {
		items = s.svc.Feedback.List()
	}
	writeJSON(w, map[string]any{"feedback": items})
}

func (s *Server) handleFeedbackCounts(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{}
	if s.svc.Feedback != nil {
		counts = s.svc.Feedback.Counts()
	}
	writeJSON(w, map[string]any{"counts": counts})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Health())
}

func queryInt(v, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

// validationMessage turns validator errors into a short client-facing message.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fieldName(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func fieldName(f string) string {
	switch f {
	case "FromStop":
		return "from_stop"
	case "ToStop":
		return "to_stop"
	case "DepartAt":
		return "depart_at"
	case "WindowSec":
		return "window_sec"
	case "MaxTransfers":
		return "max_transfers"
	}
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s completed in %.2f ms", r.Method, r.URL.Path, float64(time.Since(start).Microseconds())/1000.0)
	})
}
