// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blue-harvest-ops/fieldaudit/internal/api/health"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address       string        `yaml:"address"`
	MutationRPS   float64       `yaml:"mutation_rps"`   // sustained rate for state-changing endpoints
	MutationBurst int           `yaml:"mutation_burst"` // burst allowance on top of MutationRPS
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	Verbose       bool          `yaml:"verbose"`
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.MutationRPS == 0 {
		c.MutationRPS = 5
	}
	if c.MutationBurst == 0 {
		c.MutationBurst = 10
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	manager       AlertManager
	history       HistoryStore
	healthHandler *health.Handler
	log           zerolog.Logger
	server        *http.Server

	mu     sync.RWMutex
	detect DetectionFunc
}

// maxDetectBody bounds uploaded record batches (16 MiB).
const maxDetectBody = 16 << 20

// RegisterDetection wires the detection pipeline behind POST /api/detect.
// Safe to call while the server is running, e.g. after a config reload.
func (s *Server) RegisterDetection(fn DetectionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detect = fn
}

func (s *Server) detection() DetectionFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detect
}

// New creates a new API server. history can be nil when persistence is
// disabled; the history endpoints then return 404.
func New(cfg *Config, manager AlertManager, history HistoryStore, log zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("alert manager is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		manager:       manager,
		history:       history,
		healthHandler: health.NewHandler(),
		log:           log.With().Str("component", "api").Logger(),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info().Str("address", s.config.Address).Msg("http api listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down http api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// Handler returns the configured router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
