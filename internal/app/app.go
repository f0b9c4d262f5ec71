// Package app wires the workout store to the map, the list, the confirmation
// gate and persistence. Every mutation of the store and the save that follows
// it happen under one lock, so concurrent requests never observe a store and
// a saved document that disagree.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/locate"
	"github.com/nikolayrodzhev/mapty/internal/mapview"
	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/observability"
	"github.com/nikolayrodzhev/mapty/internal/store"
	"github.com/nikolayrodzhev/mapty/internal/ui"
)

// User-facing messages.
const (
	MsgInvalidInput     = "Inputs have to be positive numbers!"
	MsgNoLocation       = "We could not get your location :("
	MsgConfirmDelete    = "Are you sure that you want to delete this workout?"
	MsgConfirmDeleteAll = "Are you sure that you want to delete all workouts?"
)

// DefaultZoom is the zoom level used when centering on a position.
const DefaultZoom = 16

// Map draws markers and moves the viewport. Pins are opaque to the app.
type Map interface {
	AddMarker(c models.Coords, popup mapview.Popup) *mapview.Pin
	RemoveMarker(p *mapview.Pin)
	SetView(c models.Coords, zoom int)
	FitBounds(coords []models.Coords)
}

// UI shows the workout list and error messages.
type UI interface {
	ShowError(text string)
	RenderWorkout(w models.Workout)
	RemoveWorkout(id string)
	ClearWorkouts()
}

// Confirmer asks the user to confirm a destructive operation. Begin shows
// the prompt and reserves the single confirmation slot.
type Confirmer interface {
	Begin(message string) (*confirm.Ticket, error)
}

// Persister saves and loads the workout list.
type Persister interface {
	Save(ctx context.Context, workouts []models.Workout) error
	Load(ctx context.Context) []models.Workout
}

// Outcome reports what a delete or edit request ended up doing.
type Outcome string

const (
	Deleted   Outcome = "deleted"
	Replaced  Outcome = "replaced"
	Cancelled Outcome = "cancelled"
	// Missing means the target id was not in the store; nothing changed.
	Missing Outcome = "missing"
)

// Deps are the collaborators an App is built from.
type Deps struct {
	Map       Map
	UI        UI
	Confirmer Confirmer
	Persister Persister
	Locator   locate.Locator
	Log       *slog.Logger
	// Zoom defaults to DefaultZoom.
	Zoom int
	// Now defaults to time.Now.
	Now func() time.Time
}

// App owns the workout store and coordinates its collaborators.
type App struct {
	maps    Map
	ui      UI
	gate    Confirmer
	persist Persister
	locator locate.Locator
	log     *slog.Logger
	zoom    int
	now     func() time.Time

	mu        sync.Mutex
	store     *store.Store[*mapview.Pin]
	mapLoaded bool
	lastMilli int64
}

func New(d Deps) *App {
	a := &App{
		maps:    d.Map,
		ui:      d.UI,
		gate:    d.Confirmer,
		persist: d.Persister,
		locator: d.Locator,
		log:     d.Log,
		zoom:    d.Zoom,
		now:     d.Now,
		store:   store.New[*mapview.Pin](),
	}
	if a.zoom == 0 {
		a.zoom = DefaultZoom
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.locator == nil {
		a.locator = locate.Unavailable{}
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	return a
}

// Start restores saved workouts and then looks up the position in the
// background. The returned channel is closed once the lookup has finished.
func (a *App) Start(ctx context.Context) <-chan struct{} {
	a.LoadSaved(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Locate(ctx)
	}()
	return done
}

// LoadSaved adds the persisted workouts to the store and the list. Markers are
// only drawn once the map has loaded.
func (a *App) LoadSaved(ctx context.Context) int {
	saved := a.persist.Load(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, w := range saved {
		i, err := a.store.Add(w)
		if err != nil {
			a.log.Warn("skipping saved workout", "id", w.ID(), "error", err)
			continue
		}
		if ms := w.CreatedAt().UnixMilli(); ms > a.lastMilli {
			a.lastMilli = ms
		}
		if a.mapLoaded {
			a.renderMarker(i)
		}
		a.ui.RenderWorkout(w)
		n++
	}
	observability.SetStoredWorkouts(a.store.Len())
	a.log.Info("saved workouts loaded", "count", n)
	return n
}

// Locate asks for the current position once. On failure the user is told and
// the map stays unloaded; there is no retry.
func (a *App) Locate(ctx context.Context) error {
	pos, err := a.locator.CurrentPosition(ctx)
	if err != nil {
		a.log.Warn("geolocation failed", "error", err)
		a.ui.ShowError(MsgNoLocation)
		return err
	}
	a.LoadMap(pos)
	return nil
}

// LoadMap centers the map on pos and draws the markers that were deferred
// while it was unavailable. Later calls are ignored.
func (a *App) LoadMap(pos models.Coords) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mapLoaded {
		return
	}
	a.maps.SetView(pos, a.zoom)
	a.mapLoaded = true
	for _, i := range a.store.Unmarked() {
		a.renderMarker(i)
	}
	a.log.Info("map loaded", "lat", pos.Lat, "lng", pos.Lng)
}

// MapLoaded reports whether a position was found and the map is showing.
func (a *App) MapLoaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mapLoaded
}

// NewWorkout validates in, stores the workout, draws it and saves the list.
// A validation failure is shown to the user and leaves everything untouched.
func (a *App) NewWorkout(ctx context.Context, in models.WorkoutInput) (models.Workout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := models.NewWorkout(a.tick(), in)
	if err != nil {
		a.reject(err)
		return models.Workout{}, err
	}
	if err := a.add(w); err != nil {
		return models.Workout{}, err
	}
	observability.RecordWorkoutCreated(string(w.Type()))
	a.log.Info("workout logged", "id", w.ID(), "type", w.Type(), "description", w.Description())
	a.save(ctx)
	return w, nil
}

// Deletion is a destructive operation whose prompt is showing. Wait blocks
// for the user's decision and applies it; it must be called exactly once.
type Deletion struct {
	Prompt confirm.Prompt
	ticket *confirm.Ticket
	apply  func(ctx context.Context) (Outcome, int)
}

// Wait resolves the deletion. Once the user has confirmed, the change is
// saved even if ctx ends, so a confirmed deletion is never lost to shutdown.
func (d *Deletion) Wait(ctx context.Context) (Outcome, int) {
	dec := d.ticket.Wait(ctx)
	observability.RecordConfirmation(dec.String())
	if dec != confirm.Confirmed {
		return Cancelled, 0
	}
	return d.apply(context.WithoutCancel(ctx))
}

// BeginDelete shows the delete prompt for id. It fails with
// store.ErrNotFound for an unknown id, without prompting, and with
// confirm.ErrPending while another confirmation is waiting.
func (a *App) BeginDelete(id string) (*Deletion, error) {
	if _, err := a.Workout(id); err != nil {
		return nil, err
	}
	t, err := a.begin(MsgConfirmDelete)
	if err != nil {
		return nil, err
	}
	return &Deletion{Prompt: t.Prompt(), ticket: t, apply: func(ctx context.Context) (Outcome, int) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.remove(id) {
			return Missing, 0
		}
		observability.RecordWorkoutsDeleted(1)
		a.log.Info("workout deleted", "id", id)
		a.save(ctx)
		return Deleted, 1
	}}, nil
}

// BeginDeleteAll shows the delete-all prompt.
func (a *App) BeginDeleteAll() (*Deletion, error) {
	t, err := a.begin(MsgConfirmDeleteAll)
	if err != nil {
		return nil, err
	}
	return &Deletion{Prompt: t.Prompt(), ticket: t, apply: func(ctx context.Context) (Outcome, int) {
		a.mu.Lock()
		defer a.mu.Unlock()
		removed := a.store.RemoveAll()
		for _, e := range removed {
			if e.Marked {
				a.maps.RemoveMarker(e.Marker)
			}
		}
		a.ui.ClearWorkouts()
		observability.RecordWorkoutsDeleted(len(removed))
		a.log.Info("all workouts deleted", "count", len(removed))
		a.save(ctx)
		return Deleted, len(removed)
	}}, nil
}

// DeleteWorkout asks for confirmation and removes the workout and its marker.
// An unknown id is a silent no-op.
func (a *App) DeleteWorkout(ctx context.Context, id string) (Outcome, error) {
	d, err := a.BeginDelete(id)
	if errors.Is(err, store.ErrNotFound) {
		return Missing, nil
	}
	if err != nil {
		return Cancelled, err
	}
	out, _ := d.Wait(ctx)
	return out, nil
}

// DeleteAll asks for confirmation and empties the store, the list and the map.
func (a *App) DeleteAll(ctx context.Context) (Outcome, int, error) {
	d, err := a.BeginDeleteAll()
	if err != nil {
		return Cancelled, 0, err
	}
	out, n := d.Wait(ctx)
	return out, n, nil
}

// EditForm returns the values to prefill the edit form with.
func (a *App) EditForm(id string) (models.WorkoutInput, error) {
	w, err := a.Workout(id)
	if err != nil {
		return models.WorkoutInput{}, err
	}
	return w.Input(), nil
}

// EditWorkout replaces the workout with one built from in. The replacement is
// a new workout: it gets a new id, timestamp and description and moves to the
// end of the list. The new input is validated before the old workout is
// removed, so a rejected edit loses nothing.
func (a *App) EditWorkout(ctx context.Context, id string, in models.WorkoutInput) (models.Workout, Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.store.FindByID(id); err != nil {
		return models.Workout{}, Missing, nil
	}
	w, err := models.NewWorkout(a.tick(), in)
	if err != nil {
		a.reject(err)
		return models.Workout{}, "", err
	}
	a.remove(id)
	if err := a.add(w); err != nil {
		return models.Workout{}, "", err
	}
	a.log.Info("workout replaced", "old_id", id, "id", w.ID())
	a.save(ctx)
	return w, Replaced, nil
}

// MoveTo centers the map on the workout. It reports false when the map is not
// loaded or the id is unknown.
func (a *App) MoveTo(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.mapLoaded {
		return false
	}
	w, err := a.store.FindByID(id)
	if err != nil {
		return false
	}
	a.maps.SetView(w.Coords(), a.zoom)
	return true
}

// ShowAll fits the map to every workout. It reports false when there is
// nothing to show.
func (a *App) ShowAll() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.mapLoaded || a.store.Len() == 0 {
		return false
	}
	workouts := a.store.Workouts()
	coords := make([]models.Coords, len(workouts))
	for i, w := range workouts {
		coords[i] = w.Coords()
	}
	a.maps.FitBounds(coords)
	return true
}

// Workouts returns the stored workouts in order.
func (a *App) Workouts() []models.Workout {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Workouts()
}

// Workout returns a single workout by id.
func (a *App) Workout(id string) (models.Workout, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.FindByID(id)
}

func (a *App) begin(message string) (*confirm.Ticket, error) {
	t, err := a.gate.Begin(message)
	if err != nil {
		a.log.Warn("confirmation refused", "message", message, "error", err)
		return nil, err
	}
	return t, nil
}

// add stores w, draws its marker when the map is loaded and renders it.
// Callers hold a.mu.
func (a *App) add(w models.Workout) error {
	i, err := a.store.Add(w)
	if err != nil {
		return err
	}
	if a.mapLoaded {
		a.renderMarker(i)
	}
	a.ui.RenderWorkout(w)
	return nil
}

// remove drops the workout and its marker together. Callers hold a.mu.
func (a *App) remove(id string) bool {
	e, err := a.store.RemoveByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if e.Marked {
		a.maps.RemoveMarker(e.Marker)
	}
	a.ui.RemoveWorkout(id)
	return true
}

func (a *App) renderMarker(i int) {
	e, err := a.store.At(i)
	if err != nil {
		return
	}
	w := e.Workout
	pin := a.maps.AddMarker(w.Coords(), mapview.Popup{
		Content:   ui.PopupContent(w),
		ClassName: ui.PopupClass(w.Type()),
		MaxWidth:  250,
		MinWidth:  100,
	})
	if err := a.store.AttachMarker(i, pin); err != nil {
		a.log.Error("attaching marker", "id", w.ID(), "error", err)
		a.maps.RemoveMarker(pin)
	}
}

func (a *App) reject(err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		observability.RecordWorkoutRejected(ve.Field)
	}
	a.log.Info("workout rejected", "error", err)
	a.ui.ShowError(MsgInvalidInput)
}

// save persists the store. Failures are logged; the in-memory change stands.
func (a *App) save(ctx context.Context) {
	observability.SetStoredWorkouts(a.store.Len())
	if err := a.persist.Save(ctx, a.store.Workouts()); err != nil {
		observability.RecordPersistFailure()
		a.log.Error("saving workouts", "error", err)
	}
}

// tick returns a creation time whose millisecond id is unused: two workouts
// logged within the same millisecond get consecutive ids.
func (a *App) tick() time.Time {
	now := a.now()
	ms := now.UnixMilli()
	if ms <= a.lastMilli {
		ms = a.lastMilli + 1
	}
	for {
		if _, err := a.store.FindByID(models.WorkoutID(time.UnixMilli(ms))); err != nil {
			break
		}
		ms++
	}
	a.lastMilli = ms
	return time.UnixMilli(ms).In(now.Location())
}
