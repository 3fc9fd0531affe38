// Package server exposes the agent's health and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"planner-agent/internal/model"
	"planner-agent/internal/service"
)

// Entries reports collection sizes.
type Entries interface {
	Counts() map[model.Category]int
}

// Jobs reports the pending reminder jobs.
type Jobs interface {
	Pending() []service.Job
}

type healthResponse struct {
	Status           string                 `json:"status"`
	Entries          map[model.Category]int `json:"entries"`
	PendingReminders int                    `json:"pending_reminders"`
	Time             time.Time              `json:"time"`
}

// NewRouter builds the HTTP routes.
func NewRouter(entries Entries, jobs Jobs) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:           "ok",
			Entries:          entries.Counts(),
			PendingReminders: len(jobs.Pending()),
			Time:             time.Now().UTC(),
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Service runs an http.Server under a supervisor.
type Service struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

func NewService(addr string, handler http.Handler, logger zerolog.Logger) *Service {
	return &Service{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: 10 * time.Second,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

func (s *Service) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *Service) String() string { return "http-server" }
