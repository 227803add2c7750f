package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"journey-planner/internal/timetable"
)

func TestCollector_PlanAndFallback(t *testing.T) {
	c := NewCollector(time.Minute)
	c.PlanObserved("timetable", time.Millisecond)
	c.PlanObserved("fallback", time.Millisecond)
	c.FallbackInc("no_path")
	c.FallbackInc("no_path")
	c.ScanObserved(120, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Plans.WithLabelValues("timetable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Fallbacks.WithLabelValues("no_path")))
	assert.Equal(t, 60.0, testutil.ToFloat64(c.RefreshInterval))
}

func TestCollector_ReloadObserved(t *testing.T) {
	c := NewCollector(0)
	c.ReloadObserved(nil, timetable.Stats{Connections: 10, Footpaths: 3, Stops: 7}, time.Second)
	c.ReloadObserved(timetable.Mismatch("load", errors.New("bad")), timetable.Stats{}, time.Second)

	assert.Equal(t, 10.0, testutil.ToFloat64(c.TimetableConnections))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.TimetableStops))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TimetableReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TimetableReloads.WithLabelValues("schema_mismatch")))
	// failed reload leaves the gauges of the last good timetable
	assert.Equal(t, 3.0, testutil.ToFloat64(c.TimetableFootpaths))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(0)
	c.FeedbackInc()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "planner_feedback_submissions_total 1")
}
