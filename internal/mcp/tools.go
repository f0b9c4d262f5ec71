package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/store"
)

// timeRange parses optional start/end bounds. Empty strings leave that side
// open (zero time).
func timeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// filter keeps workouts of type t (any type when empty) created within
// [start, end). Zero bounds are open.
func filter(workouts []models.Workout, t models.WorkoutType, start, end time.Time) []models.Workout {
	out := []models.Workout{}
	for _, w := range workouts {
		if t != "" && w.Type() != t {
			continue
		}
		if !start.IsZero() && w.CreatedAt().Before(start) {
			continue
		}
		if !end.IsZero() && !w.CreatedAt().Before(end) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// TypeSummary aggregates the workouts of one type.
type TypeSummary struct {
	Type          models.WorkoutType `json:"type"`
	Count         int                `json:"count"`
	TotalDistance float64            `json:"total_distance_km"`
	TotalDuration float64            `json:"total_duration_min"`
	// AvgMetric is pace (min/km) for running and speed (km/h) for cycling,
	// computed over the totals.
	AvgMetric float64 `json:"avg_metric"`
	Unit      string  `json:"unit"`
}

func summarize(workouts []models.Workout) []TypeSummary {
	var out []TypeSummary
	for _, t := range models.WorkoutTypes {
		s := TypeSummary{Type: t}
		for _, w := range workouts {
			if w.Type() != t {
				continue
			}
			s.Count++
			s.TotalDistance += w.Distance()
			s.TotalDuration += w.Duration()
			_, s.Unit = w.Metric()
		}
		if s.Count == 0 {
			continue
		}
		switch t {
		case models.Running:
			s.AvgMetric = s.TotalDuration / s.TotalDistance
		case models.Cycling:
			s.AvgMetric = s.TotalDistance / (s.TotalDuration / 60)
		}
		out = append(out, s)
	}
	return out
}

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List logged workouts with optional type and date filters. Each workout has its coordinates, distance, duration, cadence or elevation gain, and pace or speed."),
	mcp.WithString("type", mcp.Description("Filter by workout type"), mcp.Enum("running", "cycling")),
	mcp.WithString("start", mcp.Description("Only workouts created at or after this date (ISO 8601 or YYYY-MM-DD).")),
	mcp.WithString("end", mcp.Description("Only workouts created before this date (ISO 8601 or YYYY-MM-DD).")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a single workout by its id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id (ten digits)")),
)

var toolLogWorkout = mcp.NewTool("log_workout",
	mcp.WithDescription("Log a new workout at the given coordinates. Running needs a positive cadence; cycling takes an elevation gain."),
	mcp.WithString("type", mcp.Required(), mcp.Description("Workout type"), mcp.Enum("running", "cycling")),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude")),
	mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude")),
	mcp.WithNumber("distance", mcp.Required(), mcp.Description("Distance in km")),
	mcp.WithNumber("duration", mcp.Required(), mcp.Description("Duration in minutes")),
	mcp.WithNumber("cadence", mcp.Description("Steps per minute (running)")),
	mcp.WithNumber("elevation_gain", mcp.Description("Elevation gain in meters (cycling)")),
)

var toolWorkoutSummary = mcp.NewTool("workout_summary",
	mcp.WithDescription("Totals per workout type: count, distance, duration and average pace or speed."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to the first workout.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var typ models.WorkoutType
	if s := req.GetString("type", ""); s != "" {
		t, err := models.ParseWorkoutType(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		typ = t
	}

	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(filter(workouts, typ, start, end))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	w, err := h.ds.GetWorkout(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError("workout " + id + " not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) logWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typeStr, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type parameter is required"), nil
	}
	typ, err := models.ParseWorkoutType(typeStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var in models.WorkoutInput
	in.Type = typ
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat", &in.Coords.Lat},
		{"lng", &in.Coords.Lng},
		{"distance", &in.Distance},
		{"duration", &in.Duration},
	} {
		v, err := req.RequireFloat(p.name)
		if err != nil {
			return mcp.NewToolResultError(p.name + " parameter is required"), nil
		}
		*p.dst = v
	}
	in.Cadence = req.GetFloat("cadence", 0)
	in.ElevationGain = req.GetFloat("elevation_gain", 0)

	w, err := h.ds.LogWorkout(ctx, in)
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return mcp.NewToolResultError("Inputs have to be positive numbers! (" + verr.Error() + ")"), nil
	}
	if err != nil {
		h.log.Error("mcp log_workout", "error", err)
		return mcp.NewToolResultError("log failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) workoutSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		h.log.Error("mcp workout_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summarize(filter(workouts, "", start, end)))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
