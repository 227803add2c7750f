package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "planner.plans.STOP_A.STOP_C", PlanSubject("planner", "STOP_A", "STOP_C"))
	assert.Equal(t, "planner.plans.Rondo_Mogilskie.a_b", PlanSubject("planner", "Rondo Mogilskie", "a.b"))
	assert.Equal(t, "planner.feedback.unknown", FeedbackSubject("planner", ""))
	assert.Equal(t, "radar.feedback.S_1", FeedbackSubject("radar", "S*1"))
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"":        "_",
		"  ":      "_",
		"A>B":     "A_B",
		"x/y":     "x_y",
		"tab\tin": "tab_in",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), in)
	}
}
