// Package http exposes the dispatcher over HTTP: a transport bridge posts
// inbound chat events to /events and receives the replies for the
// originating chat in the response body. Side-channel notifications go out
// through the outbound bridge instead.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haleybot/haley/internal/logging"
	"github.com/haleybot/haley/pkg/domain"
)

// EventHandler is the dispatcher surface the server needs.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.Event) []domain.Message
}

// Server routes inbound events to the dispatcher.
type Server struct {
	handler EventHandler
	logger  *slog.Logger
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler: POST /events for the dispatch loop,
// GET /healthz for liveness, GET /metrics for prometheus.
func NewHandler(handler EventHandler, gatherer prometheus.Gatherer, opts ...ServerOption) http.Handler {
	srv := &Server{handler: handler, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(srv)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/events", srv.handleEvent)
	r.Get("/healthz", srv.handleHealth)
	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	return r
}

// eventResponse is the reply envelope for one inbound event.
type eventResponse struct {
	Messages []domain.Message `json:"messages"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}
	if ev.ActorID == 0 || ev.ChatID == 0 {
		http.Error(w, "actor_id and chat_id are required", http.StatusBadRequest)
		return
	}
	if ev.ChatKind == "" {
		ev.ChatKind = domain.ChatPrivate
	}

	msgs := s.handler.HandleEvent(r.Context(), ev)
	if msgs == nil {
		msgs = []domain.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(eventResponse{Messages: msgs}); err != nil {
		s.logger.Error("encode event response", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
