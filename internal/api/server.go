// Package api exposes the orchestrator over HTTP: a single endpoint that
// accepts a user message and streams the resulting turn back as
// Server-Sent Events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/solenai/backtrack/internal/backtrack"
	"github.com/solenai/backtrack/internal/observe"
)

// Server is the HTTP server exposing the turn-streaming endpoint. It binds a
// chi router to the configured address and provides graceful shutdown.
type Server struct {
	router  chi.Router
	handler *TurnHandler
	httpSrv *http.Server
}

// NewServer creates a Server wrapping processor behind /v1/turns, plus a
// liveness endpoint at /healthz. If metrics is non-nil, observe.Middleware
// wraps every route with tracing and request-duration recording.
func NewServer(addr string, processor *backtrack.Processor, metrics *observe.Metrics, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if metrics != nil {
		r.Use(observe.Middleware(metrics))
	}

	handler := NewTurnHandler(processor)

	r.Post("/v1/turns", handler.HandleTurn)
	r.Get("/healthz", handleHealthz)

	return &Server{
		router:  r,
		handler: handler,
		httpSrv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
}

// Router returns the underlying chi.Router, useful for tests that want to
// drive the server via httptest without binding a real listener.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections. It blocks until the server is
// shut down or encounters a fatal error other than [http.ErrServerClosed].
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: listen and serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests (the
// active SSE stream, if any) to complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
