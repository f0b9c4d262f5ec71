// Package store holds the in-memory, ordered collection of workouts together
// with the map marker rendered for each of them.
package store

import (
	"errors"
	"fmt"

	"github.com/nikolayrodzhev/mapty/internal/models"
)

var (
	ErrNotFound      = errors.New("workout not found")
	ErrDuplicateID   = errors.New("duplicate workout id")
	ErrOutOfRange    = errors.New("index out of range")
	ErrAlreadyMarked = errors.New("marker already attached")
)

// Entry pairs a workout with its marker. Marked is false while the map is not
// available and the marker has not been rendered yet.
type Entry[M any] struct {
	Workout models.Workout
	Marker  M
	Marked  bool
}

// Store is an ordered, id-addressable list of workouts. Markers are owned by
// the map collaborator; the store only keeps them index-aligned with the
// workouts so that removing one always removes the other.
//
// Store is not safe for concurrent use; callers serialize access.
type Store[M any] struct {
	entries []Entry[M]
}

// New returns an empty store.
func New[M any]() *Store[M] {
	return &Store[M]{}
}

// Len returns the number of workouts.
func (s *Store[M]) Len() int {
	return len(s.entries)
}

// Add appends w and returns its index. The caller attaches the matching marker
// with AttachMarker once it has one.
func (s *Store[M]) Add(w models.Workout) (int, error) {
	if w.IsZero() {
		return -1, fmt.Errorf("adding workout: %w", models.ErrInvalidInput)
	}
	if s.indexOf(w.ID()) >= 0 {
		return -1, fmt.Errorf("adding workout %s: %w", w.ID(), ErrDuplicateID)
	}
	s.entries = append(s.entries, Entry[M]{Workout: w})
	return len(s.entries) - 1, nil
}

// AttachMarker records the marker rendered for the workout at index i.
func (s *Store[M]) AttachMarker(i int, m M) error {
	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("attaching marker at %d: %w", i, ErrOutOfRange)
	}
	if s.entries[i].Marked {
		return fmt.Errorf("attaching marker at %d: %w", i, ErrAlreadyMarked)
	}
	s.entries[i].Marker = m
	s.entries[i].Marked = true
	return nil
}

// FindByID returns the workout with the given id.
func (s *Store[M]) FindByID(id string) (models.Workout, error) {
	i := s.indexOf(id)
	if i < 0 {
		return models.Workout{}, ErrNotFound
	}
	return s.entries[i].Workout, nil
}

// RemoveByID removes the workout with the given id and the marker at the same
// index, returning both.
func (s *Store[M]) RemoveByID(id string) (Entry[M], error) {
	i := s.indexOf(id)
	if i < 0 {
		return Entry[M]{}, ErrNotFound
	}
	e := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return e, nil
}

// RemoveAll empties the store and returns what was in it, so the caller can
// release the markers.
func (s *Store[M]) RemoveAll() []Entry[M] {
	removed := s.entries
	s.entries = nil
	return removed
}

// Workouts returns the workouts in insertion order.
func (s *Store[M]) Workouts() []models.Workout {
	out := make([]models.Workout, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Workout
	}
	return out
}

// Markers returns the attached markers in workout order. Entries whose marker
// is still pending are skipped, so the result is shorter than Len() only while
// markers are deferred.
func (s *Store[M]) Markers() []M {
	out := make([]M, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Marked {
			out = append(out, e.Marker)
		}
	}
	return out
}

// Unmarked returns the indexes of workouts that have no marker yet.
func (s *Store[M]) Unmarked() []int {
	var out []int
	for i, e := range s.entries {
		if !e.Marked {
			out = append(out, i)
		}
	}
	return out
}

// At returns the entry at index i.
func (s *Store[M]) At(i int) (Entry[M], error) {
	if i < 0 || i >= len(s.entries) {
		return Entry[M]{}, ErrOutOfRange
	}
	return s.entries[i], nil
}

func (s *Store[M]) indexOf(id string) int {
	for i, e := range s.entries {
		if e.Workout.ID() == id {
			return i
		}
	}
	return -1
}
