package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCounters verifies the recorders feed the registered collectors.
func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(workoutsCreated.WithLabelValues("running"))
	RecordWorkoutCreated("running")
	if got := testutil.ToFloat64(workoutsCreated.WithLabelValues("running")); got != before+1 {
		t.Errorf("created{running} = %v, want %v", got, before+1)
	}

	deleted := testutil.ToFloat64(workoutsDeleted)
	RecordWorkoutsDeleted(3)
	if got := testutil.ToFloat64(workoutsDeleted); got != deleted+3 {
		t.Errorf("deleted = %v, want %v", got, deleted+3)
	}

	SetStoredWorkouts(7)
	if got := testutil.ToFloat64(storedWorkouts); got != 7 {
		t.Errorf("stored = %v, want 7", got)
	}
}
