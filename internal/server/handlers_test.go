package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/nikolayrodzhev/mapty/internal/app"
	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/locate"
	"github.com/nikolayrodzhev/mapty/internal/mapview"
	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/persistence"
	"github.com/nikolayrodzhev/mapty/internal/storage"
	"github.com/nikolayrodzhev/mapty/internal/ui"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	maps := mapview.New()
	board := ui.NewBoard()
	gate := confirm.NewGate(board, log)
	a := app.New(app.Deps{
		Map:       maps,
		UI:        board,
		Confirmer: gate,
		Persister: persistence.New(storage.NewMemory(), log),
		Locator:   locate.Static(models.Coords{Lat: 10, Lng: 20}),
		Log:       log,
	})
	if err := a.Locate(context.Background()); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	s := New(Deps{App: a, Gate: gate, Board: board, Map: maps, Log: log, APIKey: apiKey})
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// requestDelete sends a destructive request and returns the prompt it is
// waiting on.
func requestDelete(t *testing.T, s *Server, path string) confirm.Prompt {
	t.Helper()
	rec := do(t, s, http.MethodDelete, path, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("DELETE %s status = %d, want 202 (body %s)", path, rec.Code, rec.Body)
	}
	body := decode[struct {
		Confirmation confirm.Prompt `json:"confirmation"`
	}](t, rec)
	if body.Confirmation.ID == uuid.Nil {
		t.Fatalf("DELETE %s returned no confirmation id", path)
	}
	return body.Confirmation
}

var runInput = map[string]any{
	"type": "running", "coords": []float64{10, 20}, "distance": 5, "duration": 30, "cadence": 150,
}

type view struct {
	Workout models.WorkoutSnapshot `json:"workout"`
	Item    ui.ListItem            `json:"item"`
}

func create(t *testing.T, s *Server) view {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", runInput)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rec.Code, rec.Body)
	}
	return decode[view](t, rec)
}

// TestWorkoutLifecycle creates, reads and edits a workout over HTTP.
func TestWorkoutLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	created := create(t, s)
	if created.Workout.Pace == nil || *created.Workout.Pace != 6 {
		t.Errorf("pace = %v, want 6", created.Workout.Pace)
	}
	if created.Item.Title != created.Workout.Description {
		t.Errorf("item title = %q, want %q", created.Item.Title, created.Workout.Description)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/workouts/"+created.Workout.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/"+created.Workout.ID+"/form", nil)
	form := decode[struct {
		Input models.WorkoutInput `json:"input"`
		Field ui.Field            `json:"field"`
	}](t, rec)
	if form.Input.Cadence != 150 || form.Field.Name != "cadence" {
		t.Errorf("form = %+v, want cadence 150", form)
	}

	edit := map[string]any{
		"type": "cycling", "coords": []float64{10, 20}, "distance": 20, "duration": 60, "elevationGain": 100,
	}
	rec = do(t, s, http.MethodPut, "/api/v1/workouts/"+created.Workout.ID, edit)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	edited := decode[view](t, rec)
	if edited.Workout.ID == created.Workout.ID {
		t.Error("edited workout kept the old id")
	}
	if edited.Workout.Type != models.Cycling {
		t.Errorf("edited type = %q, want cycling", edited.Workout.Type)
	}

	list := decode[[]view](t, do(t, s, http.MethodGet, "/api/v1/workouts", nil))
	if len(list) != 1 || list[0].Workout.ID != edited.Workout.ID {
		t.Errorf("list = %+v, want only the edited workout", list)
	}
	running := decode[[]view](t, do(t, s, http.MethodGet, "/api/v1/workouts?type=running", nil))
	if len(running) != 0 {
		t.Errorf("running filter returned %d workouts, want 0", len(running))
	}

	snap := decode[mapview.Snapshot](t, do(t, s, http.MethodGet, "/api/v1/map", nil))
	if len(snap.Pins) != 1 {
		t.Errorf("pins = %d, want 1", len(snap.Pins))
	}
}

// TestNotFound covers reads and edits of unknown workouts.
func TestNotFound(t *testing.T) {
	s := newTestServer(t, "")
	if rec := do(t, s, http.MethodGet, "/api/v1/workouts/123", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPut, "/api/v1/workouts/123", runInput); rec.Code != http.StatusNoContent {
		t.Errorf("edit status = %d, want 204", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/workouts/123", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

// TestInvalidWorkout verifies rejected input returns 422 and shows the error.
func TestInvalidWorkout(t *testing.T) {
	s := newTestServer(t, "")
	in := map[string]any{"type": "running", "coords": []float64{1, 2}, "distance": -5, "duration": 30, "cadence": 150}
	rec := do(t, s, http.MethodPost, "/api/v1/workouts", in)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != app.MsgInvalidInput || body["field"] != "distance" {
		t.Errorf("body = %v", body)
	}

	state := decode[ui.State](t, do(t, s, http.MethodGet, "/api/v1/ui", nil))
	if state.Message == nil || state.Message.Text != app.MsgInvalidInput {
		t.Errorf("message = %+v, want invalid input error", state.Message)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/message", nil); rec.Code != http.StatusNoContent {
		t.Errorf("close status = %d, want 204", rec.Code)
	}
	state = decode[ui.State](t, do(t, s, http.MethodGet, "/api/v1/ui", nil))
	if state.Message != nil {
		t.Errorf("message = %+v after close, want none", state.Message)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/workouts", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}
}

// TestDeleteConfirmed walks the confirmation flow to a deletion.
func TestDeleteConfirmed(t *testing.T) {
	s := newTestServer(t, "")
	created := create(t, s)

	p := requestDelete(t, s, "/api/v1/workouts/"+created.Workout.ID)
	if p.Message != app.MsgConfirmDelete {
		t.Errorf("prompt = %q, want %q", p.Message, app.MsgConfirmDelete)
	}

	// A second destructive request is refused while the first waits.
	if rec := do(t, s, http.MethodDelete, "/api/v1/workouts", nil); rec.Code != http.StatusConflict {
		t.Errorf("concurrent delete status = %d, want 409", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/confirmation/"+p.ID.String(), map[string]bool{"confirm": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["decision"]; got != "confirmed" {
		t.Errorf("decision = %q, want confirmed", got)
	}
	s.bg.Wait()

	list := decode[[]view](t, do(t, s, http.MethodGet, "/api/v1/workouts", nil))
	if len(list) != 0 {
		t.Errorf("workouts = %d after delete, want 0", len(list))
	}
	snap := decode[mapview.Snapshot](t, do(t, s, http.MethodGet, "/api/v1/map", nil))
	if len(snap.Pins) != 0 {
		t.Errorf("pins = %d after delete, want 0", len(snap.Pins))
	}
}

// TestDeleteAllCancelled verifies closing the prompt cancels the deletion.
func TestDeleteAllCancelled(t *testing.T) {
	s := newTestServer(t, "")
	create(t, s)
	create(t, s)

	p := requestDelete(t, s, "/api/v1/workouts")
	if p.Message != app.MsgConfirmDeleteAll {
		t.Errorf("prompt = %q, want %q", p.Message, app.MsgConfirmDeleteAll)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/message", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d, want 204", rec.Code)
	}
	s.bg.Wait()

	list := decode[[]view](t, do(t, s, http.MethodGet, "/api/v1/workouts", nil))
	if len(list) != 2 {
		t.Errorf("workouts = %d after cancel, want 2", len(list))
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/confirmation", nil); rec.Code != http.StatusNoContent {
		t.Errorf("confirmation status = %d after cancel, want 204", rec.Code)
	}
}

// TestBackToBackDeletes verifies the second of two immediate destructive
// requests is refused and the first one's prompt is still the one waiting.
func TestBackToBackDeletes(t *testing.T) {
	s := newTestServer(t, "")
	created := create(t, s)

	first := requestDelete(t, s, "/api/v1/workouts")
	rec := do(t, s, http.MethodDelete, "/api/v1/workouts/"+created.Workout.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second delete status = %d, want 409", rec.Code)
	}
	conflict := decode[struct {
		Confirmation confirm.Prompt `json:"confirmation"`
	}](t, rec)
	if conflict.Confirmation.ID != first.ID {
		t.Errorf("409 names confirmation %v, want %v", conflict.Confirmation.ID, first.ID)
	}

	pending := decode[confirm.Prompt](t, do(t, s, http.MethodGet, "/api/v1/confirmation", nil))
	if pending.ID != first.ID || pending.Message != app.MsgConfirmDeleteAll {
		t.Errorf("pending = %+v, want the delete-all prompt %v", pending, first.ID)
	}

	do(t, s, http.MethodPost, "/api/v1/confirmation/"+first.ID.String(), map[string]bool{"confirm": true})
	s.bg.Wait()
	if n := len(s.app.Workouts()); n != 0 {
		t.Errorf("workouts = %d after confirmed delete all, want 0", n)
	}
}

// TestResolveErrors covers malformed, unknown and stale confirmation ids.
func TestResolveErrors(t *testing.T) {
	s := newTestServer(t, "")
	yes := map[string]bool{"confirm": true}

	if rec := do(t, s, http.MethodPost, "/api/v1/confirmation/not-a-uuid", yes); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	stale := "6f1c1c7e-0000-4000-8000-000000000000"
	if rec := do(t, s, http.MethodPost, "/api/v1/confirmation/"+stale, yes); rec.Code != http.StatusNotFound {
		t.Errorf("idle status = %d, want 404", rec.Code)
	}

	create(t, s)
	requestDelete(t, s, "/api/v1/workouts")
	if rec := do(t, s, http.MethodPost, "/api/v1/confirmation/"+stale, yes); rec.Code != http.StatusConflict {
		t.Errorf("stale status = %d, want 409", rec.Code)
	}
}

// TestCloseCancelsPending verifies shutdown resolves waiting deletions as
// cancelled.
func TestCloseCancelsPending(t *testing.T) {
	s := newTestServer(t, "")
	create(t, s)
	requestDelete(t, s, "/api/v1/workouts")

	s.Close()
	if _, ok := s.gate.Pending(); ok {
		t.Error("confirmation still pending after Close")
	}
	if n := len(s.app.Workouts()); n != 1 {
		t.Errorf("workouts = %d after Close, want 1", n)
	}
}

// TestMapEndpoints verifies focus and fit report whether the map moved.
func TestMapEndpoints(t *testing.T) {
	s := newTestServer(t, "")
	if got := decode[map[string]bool](t, do(t, s, http.MethodPost, "/api/v1/map/fit", nil)); got["fitted"] {
		t.Error("fit on empty store reported true")
	}
	created := create(t, s)
	if got := decode[map[string]bool](t, do(t, s, http.MethodPost, "/api/v1/workouts/"+created.Workout.ID+"/focus", nil)); !got["moved"] {
		t.Error("focus reported false")
	}
	if got := decode[map[string]bool](t, do(t, s, http.MethodPost, "/api/v1/map/fit", nil)); !got["fitted"] {
		t.Error("fit reported false")
	}
}

// TestFormFields verifies the type-specific field lookup.
func TestFormFields(t *testing.T) {
	s := newTestServer(t, "")
	field := decode[ui.Field](t, do(t, s, http.MethodGet, "/api/v1/form/fields?type=cycling", nil))
	if field.Name != "elevationGain" {
		t.Errorf("field = %q, want elevationGain", field.Name)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/form/fields?type=rowing", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
}

// TestAPIKeyOnMutatingRoutes verifies reads stay open while writes need the key.
func TestAPIKeyOnMutatingRoutes(t *testing.T) {
	s := newTestServer(t, "secret")

	if rec := do(t, s, http.MethodGet, "/api/v1/workouts", nil); rec.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workouts", runInput); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workouts", runInput, "X-API-Key", "wrong"); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/workouts", runInput, "X-API-Key", "secret"); rec.Code != http.StatusCreated {
		t.Errorf("valid key status = %d, want 201", rec.Code)
	}
}

// TestMetricsEndpoint verifies the Prometheus handler is mounted.
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	create(t, s)
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("mapty_workouts_created_total")) {
		t.Error("metrics output missing mapty_workouts_created_total")
	}
}
