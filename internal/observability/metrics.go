package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "workouts",
		Name:      "created_total",
		Help:      "Workouts logged, by type.",
	}, []string{"type"})
	workoutsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "workouts",
		Name:      "rejected_total",
		Help:      "Workout submissions rejected by validation, by field.",
	}, []string{"field"})
	workoutsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "workouts",
		Name:      "deleted_total",
		Help:      "Workouts removed by single or bulk delete.",
	})
	confirmations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "confirmation",
		Name:      "decisions_total",
		Help:      "Confirmation prompts resolved, by decision.",
	}, []string{"decision"})
	persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "persistence",
		Name:      "save_failures_total",
		Help:      "Failed attempts to save the workout list.",
	})
	storedWorkouts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "workouts",
		Name:      "stored",
		Help:      "Workouts currently held in the store.",
	})
)

func init() {
	prometheus.MustRegister(workoutsCreated, workoutsRejected, workoutsDeleted,
		confirmations, persistFailures, storedWorkouts)
}

// RecordWorkoutCreated counts a logged workout of the given type.
func RecordWorkoutCreated(workoutType string) {
	workoutsCreated.WithLabelValues(workoutType).Inc()
}

// RecordWorkoutRejected counts a submission that failed validation on field.
func RecordWorkoutRejected(field string) {
	workoutsRejected.WithLabelValues(field).Inc()
}

// RecordWorkoutsDeleted counts n removed workouts.
func RecordWorkoutsDeleted(n int) {
	workoutsDeleted.Add(float64(n))
}

// RecordConfirmation counts a resolved confirmation prompt.
func RecordConfirmation(decision string) {
	confirmations.WithLabelValues(decision).Inc()
}

// RecordPersistFailure counts a failed save.
func RecordPersistFailure() {
	persistFailures.Inc()
}

// SetStoredWorkouts reports the current store size.
func SetStoredWorkouts(n int) {
	storedWorkouts.Set(float64(n))
}
