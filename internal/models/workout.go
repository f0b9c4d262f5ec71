package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// WorkoutType tags which variant a Workout is.
type WorkoutType string

const (
	Running WorkoutType = "running"
	Cycling WorkoutType = "cycling"
)

// WorkoutTypes lists every supported type in display order.
var WorkoutTypes = []WorkoutType{Running, Cycling}

// ParseWorkoutType accepts the lowercase tag used by the form and storage.
func ParseWorkoutType(s string) (WorkoutType, error) {
	switch WorkoutType(strings.ToLower(strings.TrimSpace(s))) {
	case Running:
		return Running, nil
	case Cycling:
		return Cycling, nil
	}
	return "", fmt.Errorf("unknown workout type %q", s)
}

// Title returns the capitalized type name ("Running").
func (t WorkoutType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Coords is a latitude/longitude pair. It encodes as [lat, lng].
type Coords struct {
	Lat float64
	Lng float64
}

func (c Coords) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

func (c *Coords) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coords: %w", err)
	}
	c.Lat, c.Lng = pair[0], pair[1]
	return nil
}

// WorkoutInput is the raw form data a workout is built from. Cadence is only
// read for running, ElevationGain only for cycling.
type WorkoutInput struct {
	Type          WorkoutType `json:"type"`
	Coords        Coords      `json:"coords"`
	Distance      float64     `json:"distance"`
	Duration      float64     `json:"duration"`
	Cadence       float64     `json:"cadence,omitempty"`
	ElevationGain float64     `json:"elevationGain,omitempty"`
}

// ErrInvalidInput is matched by every *ValidationError.
var ErrInvalidInput = errors.New("invalid workout input")

// ValidationError reports the first input field that failed validation.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Workout is a single logged session. It is immutable once built: the derived
// metric and description are computed by NewWorkout and never recomputed.
type Workout struct {
	id          string
	createdAt   time.Time
	typ         WorkoutType
	coords      Coords
	distance    float64 // km
	duration    float64 // min
	cadence     int     // steps/min, running only
	elevation   float64 // m, cycling only
	metric      float64 // pace (min/km) or speed (km/h)
	description string
}

var months = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// NewWorkout validates in and builds a workout created at now.
//
// Running requires a cadence of at least one step per minute after rounding;
// cycling accepts any finite elevation
// gain, including zero and negative values.
func NewWorkout(now time.Time, in WorkoutInput) (Workout, error) {
	if err := validate(in); err != nil {
		return Workout{}, err
	}
	w := Workout{
		id:        WorkoutID(now),
		createdAt: now,
		typ:       in.Type,
		coords:    in.Coords,
		distance:  in.Distance,
		duration:  in.Duration,
	}
	switch in.Type {
	case Running:
		w.cadence = int(math.Round(in.Cadence))
	case Cycling:
		w.elevation = in.ElevationGain
	}
	w.metric = derive(w.typ, w.distance, w.duration)
	w.description = describe(w.typ, now)
	return w, nil
}

// WorkoutID derives the id the browser app used: the last ten digits of the
// creation time in Unix milliseconds.
func WorkoutID(t time.Time) string {
	s := strconv.FormatInt(t.UnixMilli(), 10)
	if len(s) > 10 {
		s = s[len(s)-10:]
	}
	return s
}

type inputField struct {
	name string
	v    float64
}

func validate(in WorkoutInput) error {
	fields := []inputField{{"distance", in.Distance}, {"duration", in.Duration}}
	switch in.Type {
	case Running:
		fields = append(fields, inputField{"cadence", in.Cadence})
	case Cycling:
		fields = append(fields, inputField{"elevationGain", in.ElevationGain})
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown workout type %q", in.Type)}
	}

	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Value: f.v, Reason: "must be a finite number"}
		}
	}
	for _, c := range []float64{in.Coords.Lat, in.Coords.Lng} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return &ValidationError{Field: "coords", Value: c, Reason: "must be a finite number"}
		}
	}

	if in.Distance <= 0 {
		return &ValidationError{Field: "distance", Value: in.Distance, Reason: "must be positive"}
	}
	if in.Duration <= 0 {
		return &ValidationError{Field: "duration", Value: in.Duration, Reason: "must be positive"}
	}
	// Cadence is stored in whole steps per minute.
	if in.Type == Running && math.Round(in.Cadence) <= 0 {
		return &ValidationError{Field: "cadence", Value: in.Cadence, Reason: "must be at least 1 step/min"}
	}
	return nil
}

func derive(t WorkoutType, distance, duration float64) float64 {
	switch t {
	case Running:
		return duration / distance
	case Cycling:
		return distance / (duration / 60)
	}
	panic(fmt.Sprintf("models: no metric for workout type %q", t))
}

func describe(t WorkoutType, at time.Time) string {
	return fmt.Sprintf("%s on %s %d", t.Title(), months[at.Month()-1], at.Day())
}

func (w Workout) ID() string { return w.id }
func (w Workout) CreatedAt() time.Time { return w.createdAt }
func (w Workout) Type() WorkoutType { return w.typ }
func (w Workout) Coords() Coords { return w.coords }
func (w Workout) Distance() float64 { return w.distance }
func (w Workout) Duration() float64 { return w.duration }
func (w Workout) Description() string { return w.description }
func (w Workout) IsZero() bool { return w.id == "" }

// Cadence reports steps per minute; ok is false for non-running workouts.
func (w Workout) Cadence() (int, bool) {
	return w.cadence, w.typ == Running
}

// ElevationGain reports meters climbed; ok is false for non-cycling workouts.
func (w Workout) ElevationGain() (float64, bool) {
	return w.elevation, w.typ == Cycling
}

// Pace is minutes per kilometer; ok is false for non-running workouts.
func (w Workout) Pace() (float64, bool) {
	return w.metric, w.typ == Running
}

// Speed is kilometers per hour; ok is false for non-cycling workouts.
func (w Workout) Speed() (float64, bool) {
	return w.metric, w.typ == Cycling
}

// Metric returns the type's derived metric and its unit.
func (w Workout) Metric() (float64, string) {
	switch w.typ {
	case Running:
		return w.metric, "min/km"
	case Cycling:
		return w.metric, "km/h"
	}
	return 0, ""
}

// Input returns the values the workout was built from, for prefilling the
// edit form.
func (w Workout) Input() WorkoutInput {
	in := WorkoutInput{
		Type:     w.typ,
		Coords:   w.coords,
		Distance: w.distance,
		Duration: w.duration,
	}
	switch w.typ {
	case Running:
		in.Cadence = float64(w.cadence)
	case Cycling:
		in.ElevationGain = w.elevation
	}
	return in
}

// WorkoutSnapshot is the persisted shape of a workout, matching what the
// browser app wrote to localStorage.
type WorkoutSnapshot struct {
	Date          time.Time   `json:"date"`
	ID            string      `json:"id"`
	Type          WorkoutType `json:"type"`
	Coords        Coords      `json:"coords"`
	Distance      float64     `json:"distance"`
	Duration      float64     `json:"duration"`
	Cadence       *float64    `json:"cadence,omitempty"`
	ElevationGain *float64    `json:"elevationGain,omitempty"`
	Pace          *float64    `json:"pace,omitempty"`
	Speed         *float64    `json:"speed,omitempty"`
	Description   string      `json:"description"`
}

// Snapshot returns the persisted form of w.
func (w Workout) Snapshot() WorkoutSnapshot {
	s := WorkoutSnapshot{
		Date:        w.createdAt,
		ID:          w.id,
		Type:        w.typ,
		Coords:      w.coords,
		Distance:    w.distance,
		Duration:    w.duration,
		Description: w.description,
	}
	metric := w.metric
	switch w.typ {
	case Running:
		cadence := float64(w.cadence)
		s.Cadence = &cadence
		s.Pace = &metric
	case Cycling:
		elevation := w.elevation
		s.ElevationGain = &elevation
		s.Speed = &metric
	}
	return s
}

// RestoreWorkout rebuilds a typed workout from persisted data. Identity and
// description are kept; the input is revalidated and the derived metric is
// recomputed rather than trusted.
func RestoreWorkout(s WorkoutSnapshot) (Workout, error) {
	if s.ID == "" {
		return Workout{}, &ValidationError{Field: "id", Reason: "missing"}
	}
	in := WorkoutInput{
		Type:     s.Type,
		Coords:   s.Coords,
		Distance: s.Distance,
		Duration: s.Duration,
	}
	if s.Cadence != nil {
		in.Cadence = *s.Cadence
	}
	if s.ElevationGain != nil {
		in.ElevationGain = *s.ElevationGain
	}
	w, err := NewWorkout(s.Date, in)
	if err != nil {
		return Workout{}, err
	}
	w.id = s.ID
	if s.Description != "" {
		w.description = s.Description
	}
	return w, nil
}

func (w Workout) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Snapshot())
}

func (w *Workout) UnmarshalJSON(data []byte) error {
	var s WorkoutSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	restored, err := RestoreWorkout(s)
	if err != nil {
		return err
	}
	*w = restored
	return nil
}
