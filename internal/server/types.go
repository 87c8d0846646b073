// Package server exposes the status of a running intake: health, Prometheus
// metrics and a websocket stream of file events.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MeKo-Tech/formflow/internal/intake"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports orchestrator counters.
type StatsProvider interface {
	Stats() intake.Stats
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	cfg        Config
	corsOrigin string
	stats      StatsProvider
	hub        *Hub
	started    time.Time
	version    string

	httpServer *http.Server
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	ShutdownTimeout time.Duration
	Version         string
}

// DefaultConfig listens on localhost:8080.
func DefaultConfig() Config {
	return Config{Host: "localhost", Port: 8080, CORSOrigin: "*", ShutdownTimeout: 10 * time.Second}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version,omitempty"`
	Time    string        `json:"time"`
	Uptime  string        `json:"uptime"`
	Stats   *intake.Stats `json:"stats,omitempty"`
	Clients int           `json:"event_clients"`
}

// NewServer creates a server. stats and hub may be nil.
func NewServer(cfg Config, stats StatsProvider, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		cfg:        cfg,
		corsOrigin: cfg.CORSOrigin,
		stats:      stats,
		hub:        hub,
		started:    time.Now(),
		version:    cfg.Version,
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the event hub; subscribe it to the orchestrator.
func (s *Server) Hub() *Hub { return s.hub }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	// Not wrapped: the upgrade needs the raw ResponseWriter.
	mux.HandleFunc("/events", s.hub.eventsHandler)
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	slog.Info("Starting status server", "addr", s.cfg.Addr())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops the listener and disconnects event clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("Shutting down status server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}
