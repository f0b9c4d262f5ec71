package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayrodzhev/mapty/internal/app"
	"github.com/nikolayrodzhev/mapty/internal/confirm"
	"github.com/nikolayrodzhev/mapty/internal/mapview"
	"github.com/nikolayrodzhev/mapty/internal/ui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the HTTP layer exposes.
type Deps struct {
	App    *app.App
	Gate   *confirm.Gate
	Board  *ui.Board
	Map    *mapview.Map
	Log    *slog.Logger
	APIKey string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	app    *app.App
	gate   *confirm.Gate
	board  *ui.Board
	maps   *mapview.Map
	log    *slog.Logger
	apiKey string
	router chi.Router

	// Deletions wait for a confirmation after their request has returned;
	// they run under bgCtx so Close can abandon them.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates a new Server with all routes configured.
func New(d Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:      d.App,
		gate:     d.Gate,
		board:    d.Board,
		maps:     d.Map,
		log:      d.Log,
		apiKey:   d.APIKey,
		router:   chi.NewRouter(),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close cancels pending confirmations, which resolve as cancelled, and waits
// for the deletions waiting on them to return.
func (s *Server) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// MountMCP serves an MCP handler at /mcp.
func (s *Server) MountMCP(h http.Handler) {
	s.router.Handle("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/api/v1/workouts", s.handleListWorkouts)
	s.router.Get("/api/v1/workouts/{id}", s.handleGetWorkout)
	s.router.Get("/api/v1/workouts/{id}/form", s.handleEditForm)
	s.router.Get("/api/v1/form/fields", s.handleFormFields)
	s.router.Get("/api/v1/map", s.handleMap)
	s.router.Get("/api/v1/ui", s.handleBoard)
	s.router.Get("/api/v1/confirmation", s.handlePendingConfirmation)
	s.router.Handle("/metrics", promhttp.Handler())

	// Mutating endpoints (API key required when one is configured)
	s.router.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}
		r.Post("/api/v1/workouts", s.handleNewWorkout)
		r.Put("/api/v1/workouts/{id}", s.handleEditWorkout)
		r.Delete("/api/v1/workouts/{id}", s.handleDeleteWorkout)
		r.Delete("/api/v1/workouts", s.handleDeleteAll)
		r.Post("/api/v1/workouts/{id}/focus", s.handleFocus)
		r.Post("/api/v1/map/fit", s.handleFit)
		r.Post("/api/v1/confirmation/{id}", s.handleResolveConfirmation)
		r.Delete("/api/v1/message", s.handleCloseMessage)
	})
}

// background runs fn after the request returns, tracked for Close.
func (s *Server) background(name string, fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.bgCtx)
		s.log.Debug("background operation finished", "op", name)
	}()
}
