package mcp

import (
	"context"

	"github.com/nikolayrodzhev/mapty/internal/app"
	"github.com/nikolayrodzhev/mapty/internal/models"
)

// DataSource abstracts the workout layer for MCP tools. Both Local (in
// process) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context) ([]models.Workout, error)
	GetWorkout(ctx context.Context, id string) (models.Workout, error)
	LogWorkout(ctx context.Context, in models.WorkoutInput) (models.Workout, error)
}

// Local serves tools from the running app.
type Local struct {
	App *app.App
}

// Compile-time checks.
var (
	_ DataSource = Local{}
	_ DataSource = (*HTTPClient)(nil)
)

func (l Local) ListWorkouts(context.Context) ([]models.Workout, error) {
	return l.App.Workouts(), nil
}

func (l Local) GetWorkout(_ context.Context, id string) (models.Workout, error) {
	return l.App.Workout(id)
}

func (l Local) LogWorkout(ctx context.Context, in models.WorkoutInput) (models.Workout, error) {
	return l.App.NewWorkout(ctx, in)
}
