package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// APIURL is the origin serving the studio backend routes
	// (/docker-api, /models-api, /board-api, /logs-api).
	APIURL string
	// BrowserID identifies this client to the backend. Sent as a header on
	// every backend request. Generated and persisted by the CLI when empty.
	BrowserID      string
	HTTPListenAddr string
	MetricsAddr    string
	LogLevel       string
	ServiceName    string
	ProfileName    string
	StatePath      string
	GitHubRepo     string
	AppVersion     string
	// Trace selects the OpenTelemetry exporter: "" (disabled) or "stdout".
	Trace string

	PollInterval   time.Duration
	PreferSSE      bool
	HealthInterval time.Duration
	RequestTimeout time.Duration

	// SessionRetention is how long the console keeps ended deployment
	// sessions in memory. Zero keeps them for the process lifetime.
	SessionRetention time.Duration

	EnableDeployed bool
	EnableRAGAdmin bool

	TLSCACert     string
	TLSServerName string
}

func Load() (*Config, error) {
	cfg := &Config{
		APIURL:         getEnv("STUDIO_API_URL", "http://localhost:8000"),
		BrowserID:      getEnv("STUDIO_BROWSER_ID", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8095"),
		MetricsAddr:    getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", ""),
		StatePath:      getEnv("STUDIO_STATE_PATH", ""),
		GitHubRepo:     getEnv("STUDIO_GITHUB_REPO", "tenstorrent/tt-studio"),
		AppVersion:     getEnv("APP_VERSION", "dev"),
		Trace:          getEnv("STUDIO_TRACE", ""),
		TLSCACert:      getEnv("STUDIO_TLS_CA_CERT", ""),
		TLSServerName:  getEnv("STUDIO_TLS_SERVER_NAME", ""),
	}

	var err error
	if cfg.PollInterval, err = getDuration("STUDIO_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.HealthInterval, err = getDuration("STUDIO_HEALTH_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("STUDIO_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionRetention, err = getDuration("STUDIO_SESSION_RETENTION", time.Hour); err != nil {
		return nil, err
	}
	if cfg.PreferSSE, err = getBool("STUDIO_PREFER_SSE", true); err != nil {
		return nil, err
	}
	if cfg.EnableDeployed, err = getBool("ENABLE_DEPLOYED", false); err != nil {
		return nil, err
	}
	if cfg.EnableRAGAdmin, err = getBool("ENABLE_RAG_ADMIN", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the fields required by the named service are present.
func (c *Config) Validate(service string) error {
	var missing []string

	if c.APIURL == "" {
		missing = append(missing, "STUDIO_API_URL")
	}
	if c.PollInterval <= 0 {
		missing = append(missing, "STUDIO_POLL_INTERVAL")
	}

	switch service {
	case "studio-console":
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
		if c.StatePath == "" {
			missing = append(missing, "STUDIO_STATE_PATH")
		}
	case "mcp-server":
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.TLSServerName != "" && c.TLSCACert == "" {
		return fmt.Errorf("STUDIO_TLS_SERVER_NAME requires STUDIO_TLS_CA_CERT")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are milliseconds, matching the console's interval settings.
		ms, convErr := strconv.Atoi(v)
		if convErr != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
