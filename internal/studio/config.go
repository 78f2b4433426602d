package studio

import (
	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/config"
)

// NewFromConfig builds the backend client every binary uses: browser id,
// request id, tracing, metrics and debug logging, in that order.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	tlsConfig, err := cfg.BackendTLS()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithTimeout(cfg.RequestTimeout),
		WithMiddleware(
			BrowserID(cfg.BrowserID),
			RequestID(),
			Tracing(),
			Instrument(),
			Logging(logger),
		),
	}
	if tlsConfig != nil {
		base = append(base, WithTLSConfig(tlsConfig))
	}
	return New(cfg.APIURL, append(base, opts...)...)
}
