package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/tt-studio/console/internal/cli"
	"github.com/tt-studio/console/internal/config"
	"github.com/tt-studio/console/internal/logging"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/store"
	"github.com/tt-studio/console/internal/studio"
	"github.com/tt-studio/console/internal/tracing"
)

const prefBrowserID = "browser_id"

// connectFlags are accepted by every command that talks to the backend.
type connectFlags struct {
	profile  string
	apiURL   string
	logLevel string
}

func addConnectFlags(fs *pflag.FlagSet) *connectFlags {
	f := &connectFlags{}
	fs.StringVarP(&f.profile, "profile", "p", "", "connection profile (default: the active profile)")
	fs.StringVar(&f.apiURL, "api-url", "", "backend origin, overrides the profile and STUDIO_API_URL")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (default: warn, or LOG_LEVEL)")
	return f
}

// app is the per-invocation wiring shared by commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *studio.Client
	state    *store.Store
	shutdown tracing.ShutdownFunc
}

func (f *connectFlags) connect(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ServiceName = "studioctl"
	if _, err := cli.Resolve(cfg, f.profile); err != nil {
		return nil, err
	}
	if f.apiURL != "" {
		cfg.APIURL = f.apiURL
	}
	switch {
	case f.logLevel != "":
		cfg.LogLevel = f.logLevel
	case os.Getenv("LOG_LEVEL") == "":
		cfg.LogLevel = "warn"
	}
	if cfg.StatePath == "" {
		if cfg.StatePath, err = cli.StatePath(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate("studioctl"); err != nil {
		return nil, err
	}

	logger := logging.NewConsoleLogger(cfg)
	a := &app{cfg: cfg, logger: logger}

	a.shutdown, err = tracing.Setup(ctx, cfg, os.Stderr, logger)
	if err != nil {
		return nil, err
	}

	if cfg.BrowserID == "" {
		cfg.BrowserID = a.browserID(ctx)
	}

	a.client, err = studio.NewFromConfig(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// browserID returns the id persisted in the local store, creating it on
// first use. Without a usable store each run gets a fresh id.
func (a *app) browserID(ctx context.Context) string {
	st, err := a.store(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("local state unavailable, using an ephemeral browser id")
		return uuid.NewString()
	}

	var id string
	err = st.KV.Get(ctx, store.BucketPreferences, prefBrowserID, &id)
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn().Err(err).Msg("read browser id")
	}

	id = uuid.NewString()
	if err := st.KV.Put(ctx, store.BucketPreferences, prefBrowserID, id); err != nil {
		a.logger.Warn().Err(err).Msg("persist browser id")
	}
	return id
}

// store opens the local database on first use.
func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.state != nil {
		return a.state, nil
	}
	st, err := store.Open(ctx, a.cfg.StatePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.state = st
	return st, nil
}

func (a *app) newTracker(opts ...progress.TrackerOption) *progress.Tracker {
	transport := progress.NewTransport(progress.ClientSource(a.client), a.logger, progress.WithInterval(a.cfg.PollInterval))
	return progress.NewTracker(transport, a.logger, opts...)
}

func (a *app) close() {
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.logger.Warn().Err(err).Msg("flush traces")
		}
	}
	if a.state != nil {
		a.state.Close()
	}
}
