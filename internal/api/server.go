package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/api/handler"
	mw "github.com/tt-studio/console/internal/api/middleware"
	"github.com/tt-studio/console/internal/config"
	"github.com/tt-studio/console/internal/deploy"
)

// Backend is the studio backend as seen by the console.
type Backend interface {
	handler.ModelBackend
	handler.BoardBackend
}

// Services bundles what the console server routes to.
type Services struct {
	Backend  Backend
	Deployer handler.Deployer
	Sessions *deploy.Sessions
	History  handler.History
	Checker  handler.HealthChecker
	// Ready, when set, is consulted by /readyz.
	Ready func(ctx context.Context) error
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services Services
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, services Services, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
	s.router.Use(mw.BrowserID)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Deployments. The deployed playground serves pre-deployed models
		// only, so it exposes tracking but not deploy or board reset.
		deployment := handler.NewDeployment(s.services.Deployer, s.services.Sessions, s.services.History, s.logger)
		if !s.cfg.EnableDeployed {
			r.Post("/deployments", deployment.Create)
		}
		r.Get("/deployments", deployment.List)
		r.Get("/deployments/active", deployment.Active)
		r.Get("/deployments/{jobID}", deployment.Get)
		r.Delete("/deployments/{jobID}", deployment.Stop)
		r.Get("/deployments/{jobID}/ws", deployment.Watch)

		// Models
		models := handler.NewModel(s.services.Backend, s.services.Checker)
		r.Get("/models", models.List)
		r.Get("/models/{deployID}/health", models.Health)

		// Board
		board := handler.NewBoard(s.services.Backend)
		r.Get("/board", board.Status)
		r.Post("/board/refresh", board.Refresh)
		if !s.cfg.EnableDeployed {
			r.Post("/board/reset", board.Reset)
		}
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.services.Ready != nil {
		if err := s.services.Ready(ctx); err != nil {
			checks["store"] = err.Error()
			healthy = false
		} else {
			checks["store"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
