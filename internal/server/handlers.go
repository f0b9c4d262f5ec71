package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayrodzhev/mapty/internal/app"
	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/store"
	"github.com/nikolayrodzhev/mapty/internal/ui"
)

// workoutView is a workout together with its rendered list item.
type workoutView struct {
	Workout models.Workout `json:"workout"`
	Item    ui.ListItem    `json:"item"`
}

func viewOf(w models.Workout) workoutView {
	return workoutView{Workout: w, Item: ui.Render(w)}
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	var want models.WorkoutType
	if typeFilter != "" {
		t, err := models.ParseWorkoutType(typeFilter)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		want = t
	}

	views := []workoutView{}
	for _, wo := range s.app.Workouts() {
		if want != "" && wo.Type() != want {
			continue
		}
		views = append(views, viewOf(wo))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	wo, err := s.app.Workout(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(wo))
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	in, err := s.app.EditForm(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"input": in,
		"field": ui.FieldFor(in.Type),
	})
}

func (s *Server) handleFormFields(w http.ResponseWriter, r *http.Request) {
	t, err := models.ParseWorkoutType(r.URL.Query().Get("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ui.FieldFor(t))
}

func (s *Server) handleNewWorkout(w http.ResponseWriter, r *http.Request) {
	var in models.WorkoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	wo, err := s.app.NewWorkout(r.Context(), in)
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(wo))
}

func (s *Server) handleEditWorkout(w http.ResponseWriter, r *http.Request) {
	var in models.WorkoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	wo, outcome, err := s.app.EditWorkout(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	if outcome == app.Missing {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(wo))
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.app.BeginDelete(id)
	if errors.Is(err, store.ErrNotFound) {
		// Deleting an unknown workout does nothing.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeDeletionError(w, err)
		return
	}
	s.await("delete workout", d)
	writeJSON(w, http.StatusAccepted, awaiting(d))
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	d, err := s.app.BeginDeleteAll()
	if err != nil {
		s.writeDeletionError(w, err)
		return
	}
	s.await("delete all workouts", d)
	writeJSON(w, http.StatusAccepted, awaiting(d))
}

// await waits for the deletion's decision after the request has returned.
func (s *Server) await(name string, d *app.Deletion) {
	s.background(name, func(ctx context.Context) {
		outcome, n := d.Wait(ctx)
		s.log.Info("deletion resolved", "op", name, "confirmation", d.Prompt.ID, "outcome", outcome, "count", n)
	})
}

func awaiting(d *app.Deletion) map[string]any {
	return map[string]any{"status": "awaiting confirmation", "confirmation": d.Prompt}
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"moved": s.app.MoveTo(chi.URLParam(r, "id"))})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"fitted": s.app.ShowAll()})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.maps.Snapshot())
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.State())
}

func (s *Server) handlePendingConfirmation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.gate.Pending()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleResolveConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid confirmation ID"})
		return
	}
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	d := confirm.Cancelled
	if body.Confirm {
		d = confirm.Confirmed
	}
	err = s.gate.Resolve(id, d)
	switch {
	case errors.Is(err, confirm.ErrNoPending):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, confirm.ErrStale):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"decision": d.String()})
	}
}

// handleCloseMessage closes the overlay. Closing a confirmation cancels it.
func (s *Server) handleCloseMessage(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.gate.Pending(); ok {
		if err := s.gate.Resolve(p.ID, confirm.Cancelled); err != nil && !errors.Is(err, confirm.ErrNoPending) {
			s.log.Warn("cancel confirmation", "id", p.ID, "error", err)
		}
	}
	s.board.CloseMessage()
	w.WriteHeader(http.StatusNoContent)
}

// writeDeletionError writes 409 when another confirmation is already waiting.
func (s *Server) writeDeletionError(w http.ResponseWriter, err error) {
	if errors.Is(err, confirm.ErrPending) {
		body := map[string]any{"error": err.Error()}
		if p, ok := s.gate.Pending(); ok {
			body["confirmation"] = p
		}
		writeJSON(w, http.StatusConflict, body)
		return
	}
	s.log.Error("deletion error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) writeWorkoutError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  app.MsgInvalidInput,
			"field":  ve.Field,
			"reason": ve.Reason,
		})
		return
	}
	s.log.Error("workout error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
