// Package mapview is a headless map: it keeps the pins and the current
// viewport that a browser map widget would display, so clients can render
// them.
package mapview

import (
	"fmt"
	"sync"

	"github.com/golang/geo/s2"
	"github.com/nikolayrodzhev/mapty/internal/models"
)

// Popup is the label bound to a pin.
type Popup struct {
	Content   string `json:"content"`
	ClassName string `json:"class_name"`
	MaxWidth  int    `json:"max_width"`
	MinWidth  int    `json:"min_width"`
}

// Pin is a rendered marker. Callers outside this package treat it as opaque.
type Pin struct {
	id     int
	coords models.Coords
	popup  Popup
}

// View is the map viewport.
type View struct {
	Center models.Coords `json:"center"`
	Zoom   int           `json:"zoom"`
	// Bounds is set when the view was produced by FitBounds.
	Bounds *Bounds `json:"bounds,omitempty"`
}

// Bounds is a south-west / north-east rectangle.
type Bounds struct {
	SouthWest models.Coords `json:"south_west"`
	NorthEast models.Coords `json:"north_east"`
}

// PinState is the exported form of a pin for snapshots.
type PinState struct {
	ID     int           `json:"id"`
	Coords models.Coords `json:"coords"`
	Popup  Popup         `json:"popup"`
}

// Snapshot is everything a client needs to draw the map.
type Snapshot struct {
	Ready bool       `json:"ready"`
	View  View       `json:"view"`
	Pins  []PinState `json:"pins"`
}

// Map holds pins and the viewport. It is safe for concurrent use.
type Map struct {
	mu     sync.Mutex
	ready  bool
	view   View
	pins   []*Pin
	nextID int
}

func New() *Map {
	return &Map{}
}

// AddMarker places a pin at c with the given popup and returns its handle.
func (m *Map) AddMarker(c models.Coords, popup Popup) *Pin {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &Pin{id: m.nextID, coords: c, popup: popup}
	m.pins = append(m.pins, p)
	return p
}

// RemoveMarker takes p off the map. Removing an unknown pin is a no-op.
func (m *Map) RemoveMarker(p *Pin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range m.pins {
		if q == p {
			m.pins = append(m.pins[:i], m.pins[i+1:]...)
			return
		}
	}
}

// SetView centers the map on c at the given zoom level. The first call marks
// the map as ready.
func (m *Map) SetView(c models.Coords, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	m.view = View{Center: c, Zoom: zoom}
}

// FitBounds moves the view to the smallest rectangle covering coords. An
// empty list leaves the view unchanged.
func (m *Map) FitBounds(coords []models.Coords) {
	if len(coords) == 0 {
		return
	}
	b, center := boundsOf(coords)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = View{Center: center, Zoom: m.view.Zoom, Bounds: &b}
}

// Snapshot returns a copy of the current state.
func (m *Map) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Ready: m.ready, View: m.view, Pins: make([]PinState, len(m.pins))}
	if m.view.Bounds != nil {
		b := *m.view.Bounds
		s.View.Bounds = &b
	}
	for i, p := range m.pins {
		s.Pins[i] = PinState{ID: p.id, Coords: p.coords, Popup: p.popup}
	}
	return s
}

func boundsOf(coords []models.Coords) (Bounds, models.Coords) {
	rect := s2.EmptyRect()
	for _, c := range coords {
		rect = rect.AddPoint(s2.LatLngFromDegrees(c.Lat, c.Lng))
	}
	lo, hi, mid := rect.Lo(), rect.Hi(), rect.Center()
	b := Bounds{
		SouthWest: models.Coords{Lat: lo.Lat.Degrees(), Lng: lo.Lng.Degrees()},
		NorthEast: models.Coords{Lat: hi.Lat.Degrees(), Lng: hi.Lng.Degrees()},
	}
	return b, models.Coords{Lat: mid.Lat.Degrees(), Lng: mid.Lng.Degrees()}
}

func (p *Pin) String() string {
	return fmt.Sprintf("pin#%d", p.id)
}
