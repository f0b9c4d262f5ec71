// Package persistence saves and loads the workout list as a single JSON
// document in a string key-value store.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nikolayrodzhev/mapty/internal/models"
)

// Key is the fixed key the whole workout list is stored under.
const Key = "workouts"

// KV is a string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Adapter serializes workouts to a KV. Markers are never persisted.
type Adapter struct {
	kv  KV
	log *slog.Logger
}

func New(kv KV, log *slog.Logger) *Adapter {
	return &Adapter{kv: kv, log: log}
}

// Save writes workouts, in order, under Key.
func (a *Adapter) Save(ctx context.Context, workouts []models.Workout) error {
	data, err := Encode(workouts)
	if err != nil {
		return err
	}
	if err := a.kv.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("saving workouts: %w", err)
	}
	return nil
}

// Load reads the saved workouts. Missing, unreadable or malformed data yields
// an empty list: the problem is logged and nothing is surfaced to the caller,
// so a corrupt document silently starts the user from scratch.
func (a *Adapter) Load(ctx context.Context) []models.Workout {
	raw, ok, err := a.kv.Get(ctx, Key)
	if err != nil {
		a.log.Warn("loading workouts failed, starting empty", "error", err)
		return nil
	}
	if !ok || raw == "" || raw == "null" {
		return nil
	}
	workouts, skipped, err := Decode([]byte(raw))
	if err != nil {
		a.log.Warn("stored workouts are malformed, starting empty", "error", err)
		return nil
	}
	if skipped > 0 {
		a.log.Warn("skipped invalid stored workouts", "skipped", skipped, "loaded", len(workouts))
	}
	return workouts
}

// Encode renders workouts as the JSON array stored under Key.
func Encode(workouts []models.Workout) ([]byte, error) {
	if workouts == nil {
		workouts = []models.Workout{}
	}
	data, err := json.Marshal(workouts)
	if err != nil {
		return nil, fmt.Errorf("encoding workouts: %w", err)
	}
	return data, nil
}

// Decode parses a stored JSON array back into typed workouts. Elements that
// fail validation, or repeat an earlier id, are skipped and counted; a
// document that is not a JSON array is an error.
func Decode(data []byte) ([]models.Workout, int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, 0, fmt.Errorf("decoding workouts: %w", err)
	}

	workouts := make([]models.Workout, 0, len(elems))
	seen := make(map[string]bool, len(elems))
	skipped := 0
	for _, elem := range elems {
		var s models.WorkoutSnapshot
		if err := json.Unmarshal(elem, &s); err != nil {
			skipped++
			continue
		}
		w, err := models.RestoreWorkout(s)
		if err != nil || seen[w.ID()] {
			skipped++
			continue
		}
		seen[w.ID()] = true
		workouts = append(workouts, w)
	}
	return workouts, skipped, nil
}
