package health

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/metrics"
	"github.com/tt-studio/console/internal/model"
)

// Prober performs one health request for a deployed model.
type Prober interface {
	ModelHealth(ctx context.Context, deployID string) (model.HealthStatus, error)
}

// Checker runs single health checks.
type Checker struct {
	prober Prober
	logger zerolog.Logger
}

func NewChecker(prober Prober, logger zerolog.Logger) *Checker {
	return &Checker{prober: prober, logger: logger}
}

// Check returns the model's health. A transport failure yields
// HealthUnknown together with the error.
func (c *Checker) Check(ctx context.Context, deployID string) (model.HealthStatus, error) {
	status, err := c.prober.ModelHealth(ctx, deployID)
	if err != nil {
		status = model.HealthUnknown
		c.logger.Debug().Err(err).Str("deploy_id", deployID).Msg("health check failed")
	}
	metrics.HealthChecksTotal.WithLabelValues(string(status)).Inc()
	return status, err
}
