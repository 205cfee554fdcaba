// Package server exposes the registry over the HTTP control surface:
// health, state reads, stop, SSE, archive reads, and the real-time
// WebSocket ingress. No route mutates gameplay state directly; turns
// only flow through the ingress.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/veilcraft/storyroom/internal/archive"
	"github.com/veilcraft/storyroom/internal/config"
	"github.com/veilcraft/storyroom/internal/game"
	"github.com/veilcraft/storyroom/internal/registry"
	"github.com/veilcraft/storyroom/internal/room"
	"github.com/veilcraft/storyroom/internal/scenario"
	"github.com/veilcraft/storyroom/internal/server/sse"
)

// Service owns the HTTP surface and the components behind it.
type Service struct {
	cfg         *config.Config
	registry    *registry.Registry
	engine      *game.Engine
	archive     *archive.Store
	broadcaster *sse.Broadcaster
	ingress     *room.Ingress
	router      chi.Router

	// opening holds the current scenario's starting location; swapped
	// on scenario reload together with the engine table.
	opening atomic.Value
}

// New wires a Service. archive may be nil to run without persistence.
func New(cfg *config.Config, reg *registry.Registry, engine *game.Engine,
	sc *scenario.Scenario, arch *archive.Store) *Service {
	s := &Service{
		cfg:         cfg,
		registry:    reg,
		engine:      engine,
		archive:     arch,
		broadcaster: sse.NewBroadcaster(cfg.SSEWriteTimeout),
		router:      chi.NewRouter(),
	}
	s.opening.Store(sc.OpeningLocation)

	s.ingress = room.NewIngress(reg, arch, s.broadcaster,
		s.OpeningLocation, cfg.InventoryCap, cfg.TeardownGrace)

	s.setupRoutes()
	return s
}

// OpeningLocation returns the current scenario's starting location.
func (s *Service) OpeningLocation() string {
	return s.opening.Load().(string)
}

// ReloadScenario swaps the live branch table and opening location.
// Called by the scenario watcher; live rooms keep their state and pick
// up the new table on their next turn.
func (s *Service) ReloadScenario(sc *scenario.Scenario) {
	if err := s.engine.Swap(sc.Branches); err != nil {
		log.Warn().Err(err).Str("scenario", sc.Name).Msg("Rejected scenario swap")
		return
	}
	s.opening.Store(sc.OpeningLocation)
}

// Router returns the HTTP handler.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/state/{roomID}", s.handleState)
	s.router.Post("/stop/{roomID}", s.handleStop)
	s.router.Get("/rooms", s.handleRooms)
	s.router.Get("/events", s.broadcaster.Handle)
	s.router.Get("/ws/{roomID}", s.ingress.HandleWS)
	s.router.Get("/archive", s.handleArchiveList)
	s.router.Get("/archive/{roomID}", s.handleArchiveGet)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("Control surface listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger logs each request with zerolog at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}
