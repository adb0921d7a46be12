package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantclub/paperledger/internal/config"
	"github.com/quantclub/paperledger/internal/session"
	"github.com/quantclub/paperledger/internal/store"
)

// HealthProber reports component availability for the health endpoint.
type HealthProber func(ctx context.Context) map[string]string

// Server is the read-only dashboard API: portfolio state, scores,
// leaderboard, metrics, and the live websocket feed.
type Server struct {
	router   *mux.Router
	server   *http.Server
	sessions *session.Manager
	profiles store.ProfileRepo
	probe    HealthProber
	hub      *wsHub
}

// NewServer creates the HTTP server over a session manager.
func NewServer(cfg config.HTTPConfig, sessions *session.Manager, profiles store.ProfileRepo, probe HealthProber) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		sessions: sessions,
		profiles: profiles,
		probe:    probe,
		hub:      newWSHub(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/portfolio/{profile}", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/score/{profile}", s.handleScore).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	s.router.HandleFunc("/ws/portfolio/{profile}", s.handlePortfolioWS)
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.closeAll()
		return s.server.Shutdown(shutdownCtx)
	}
}
