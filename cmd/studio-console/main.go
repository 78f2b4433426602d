package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/tt-studio/console/internal/api"
	"github.com/tt-studio/console/internal/config"
	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/health"
	"github.com/tt-studio/console/internal/logging"
	"github.com/tt-studio/console/internal/metrics"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/store"
	"github.com/tt-studio/console/internal/studio"
	"github.com/tt-studio/console/internal/tracing"
)

func main() {
	sweep := pflag.Bool("health-sweep", true, "periodically check the health of every deployed model")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "studio-console"
	}

	if err := cfg.Validate("studio-console"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg, os.Stdout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	st, err := store.Open(ctx, cfg.StatePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open state store")
	}
	defer st.Close()
	metrics.RegisterDBStats(st.DB())

	client, err := studio.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create backend client")
	}

	sessions := deploy.NewSessions(progress.ClientSource(client), logger, cfg.PollInterval,
		progress.OnEnd(deploy.RecordOutcome(st.Deployments, logger)))
	defer sessions.Close()
	metrics.RegisterActiveSessions(sessions.Active)

	trigger := deploy.NewTrigger(client, sessions, logger,
		deploy.WithRecorder(st.Deployments),
		deploy.PreferSSE(cfg.PreferSSE),
	)
	checker := health.NewChecker(client, logger)

	ready := func(ctx context.Context) error {
		return st.DB().PingContext(ctx)
	}
	srv := api.NewServer(logger, api.Services{
		Backend:  client,
		Deployer: trigger,
		Sessions: sessions,
		History:  st.Deployments,
		Checker:  checker,
		Ready:    ready,
	}, cfg)

	httpServer := &http.Server{
		Addr:        cfg.HTTPListenAddr,
		Handler:     srv,
		ReadTimeout: 15 * time.Second,
		// Streaming responses (board reset, websocket feeds) outlive a
		// fixed write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Str("backend", client.BaseURL()).Bool("deployed", cfg.EnableDeployed).Msg("starting console server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("console server: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, ready)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if cfg.SessionRetention > 0 {
		g.Go(func() error {
			return sessions.RunPruner(gctx, cfg.SessionRetention)
		})
	}

	if *sweep {
		sweeper := health.NewSweeper(client, checker, health.NewRegistry(0), cfg.HealthInterval, logger)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsServer != nil {
			metricsServer.Shutdown(shutdownCtx)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("flush traces")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("console stopped")
		os.Exit(1)
	}
}
