// Package ui renders workouts for display and keeps the state of the list and
// the message overlay.
package ui

import (
	"strconv"

	"github.com/nikolayrodzhev/mapty/internal/models"
)

// Detail is one icon/value/unit cell of a list item.
type Detail struct {
	Icon  string `json:"icon"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// ListItem is the rendered form of a workout in the sidebar list.
type ListItem struct {
	ID      string             `json:"id"`
	Type    models.WorkoutType `json:"type"`
	Class   string             `json:"class"`
	Title   string             `json:"title"`
	Details []Detail           `json:"details"`
}

// Field describes the type-specific input shown on the workout form.
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder"`
}

// Icon returns the emoji used for a workout type.
func Icon(t models.WorkoutType) string {
	if t == models.Running {
		return "🏃‍♂️"
	}
	return "🚴‍♀️"
}

// PopupContent is the text of the map popup for w.
func PopupContent(w models.Workout) string {
	return Icon(w.Type()) + " " + w.Description()
}

// PopupClass is the CSS class of the map popup for t.
func PopupClass(t models.WorkoutType) string {
	return string(t) + "-popup"
}

// FieldFor returns the form input shown for t; the other type's field is hidden.
func FieldFor(t models.WorkoutType) Field {
	switch t {
	case models.Running:
		return Field{Name: "cadence", Label: "Cadence", Placeholder: "step/min"}
	case models.Cycling:
		return Field{Name: "elevationGain", Label: "Elev Gain", Placeholder: "meters"}
	}
	return Field{}
}

// Render builds the list item for w.
func Render(w models.Workout) ListItem {
	item := ListItem{
		ID:    w.ID(),
		Type:  w.Type(),
		Class: "workout workout--" + string(w.Type()),
		Title: w.Description(),
		Details: []Detail{
			{Icon: Icon(w.Type()), Value: num(w.Distance()), Unit: "km"},
			{Icon: "⏱", Value: num(w.Duration()), Unit: "min"},
		},
	}

	switch w.Type() {
	case models.Running:
		pace, _ := w.Pace()
		cadence, _ := w.Cadence()
		item.Details = append(item.Details,
			Detail{Icon: "⚡️", Value: fixed1(pace), Unit: "min/km"},
			Detail{Icon: "🦶🏼", Value: strconv.Itoa(cadence), Unit: "spm"},
		)
	case models.Cycling:
		speed, _ := w.Speed()
		elev, _ := w.ElevationGain()
		item.Details = append(item.Details,
			Detail{Icon: "⚡️", Value: fixed1(speed), Unit: "km/h"},
			Detail{Icon: "⛰", Value: num(elev), Unit: "m"},
		)
	}
	return item
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixed1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
