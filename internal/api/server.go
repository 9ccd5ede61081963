// Package api exposes the assistant over HTTP: conversational endpoints
// (JSON and SSE) plus knowledge-base administration and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorebase/lore/internal/agent"
	"github.com/lorebase/lore/internal/knowledge"
)

// ServerConfig carries the server's dependencies.
type ServerConfig struct {
	Logger    *slog.Logger
	Agent     *agent.Agent       // Required
	Knowledge *knowledge.Service // Required
	Pool      *pgxpool.Pool      // Optional: nil disables DB ping in /ready
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}
	rh := &resourcesHandler{knowledge: cfg.Knowledge, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("POST /api/chat/stream", ch.stream)
	mux.HandleFunc("GET /api/resources", rh.list)
	mux.HandleFunc("DELETE /api/resources/{id}", rh.delete)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> Routes
	// RequestID sits before Logging so request_id lands in log attributes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
