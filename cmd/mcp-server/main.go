package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tt-studio/console/internal/config"
	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/health"
	"github.com/tt-studio/console/internal/logging"
	"github.com/tt-studio/console/internal/mcpserver"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/store"
	"github.com/tt-studio/console/internal/studio"
	"github.com/tt-studio/console/internal/tracing"
)

func main() {
	var (
		configPath = pflag.String("config", "mcp.yaml", "Path to mcp.yaml configuration file")
		addr       = pflag.String("addr", ":8090", "Listen address")
		logLevel   = pflag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mcp-server"
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger := logging.NewLogger(cfg)

	mcpCfg, err := mcpserver.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// mcp.yaml describes the backend; environment variables override it.
	if _, ok := os.LookupEnv("STUDIO_API_URL"); !ok && mcpCfg.APIURL != "" {
		cfg.APIURL = mcpCfg.APIURL
	}
	if apiURL := os.Getenv("MCP_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if cfg.BrowserID == "" {
		cfg.BrowserID = mcpCfg.BrowserID
	}
	if mcpCfg.PreferSSE != nil {
		if _, ok := os.LookupEnv("STUDIO_PREFER_SSE"); !ok {
			cfg.PreferSSE = *mcpCfg.PreferSSE
		}
	}
	if envAddr := os.Getenv("MCP_ADDR"); envAddr != "" {
		*addr = envAddr
	}
	cfg.HTTPListenAddr = *addr

	if err := cfg.Validate("mcp-server"); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg, os.Stdout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	client, err := studio.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create backend client")
	}

	var (
		trackerOpts []progress.TrackerOption
		triggerOpts = []deploy.Option{deploy.PreferSSE(cfg.PreferSSE)}
	)
	if cfg.StatePath != "" {
		st, err := store.Open(ctx, cfg.StatePath, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open state store")
		}
		defer st.Close()
		trackerOpts = append(trackerOpts, progress.OnEnd(deploy.RecordOutcome(st.Deployments, logger)))
		triggerOpts = append(triggerOpts, deploy.WithRecorder(st.Deployments))
	}

	sessions := deploy.NewSessions(progress.ClientSource(client), logger, cfg.PollInterval, trackerOpts...)
	defer sessions.Close()

	srv := mcpserver.New(mcpCfg, mcpserver.Deps{
		Backend:  client,
		Deployer: deploy.NewTrigger(client, sessions, logger, triggerOpts...),
		Sessions: sessions,
		Checker:  health.NewChecker(client, logger),
	}, cfg.AppVersion, logger)

	httpSrv := &http.Server{
		Addr:        *addr,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Str("backend", client.BaseURL()).Msg("MCP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("flush traces")
	}
}
