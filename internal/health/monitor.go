package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/model"
)

// DefaultInterval is the re-check period for a model that is not healthy.
const DefaultInterval = 10 * time.Second

// Monitor re-checks a model until it reports healthy.
type Monitor struct {
	checker  *Checker
	interval time.Duration
	logger   zerolog.Logger
}

func NewMonitor(checker *Checker, interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{checker: checker, interval: interval, logger: logger}
}

// Watch checks deployID immediately and then once per interval while the
// model is not healthy. onChange, if set, sees every status transition
// including the first result. Watch returns the last status once the model
// is healthy, or with ctx's error when ctx ends first.
func (m *Monitor) Watch(ctx context.Context, deployID string, onChange func(model.HealthStatus)) (model.HealthStatus, error) {
	var last model.HealthStatus
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		status, _ := m.checker.Check(ctx, deployID)
		if ctx.Err() != nil {
			return last, ctx.Err()
		}
		if status != last {
			m.logger.Info().Str("deploy_id", deployID).Str("status", string(status)).Msg("model health changed")
			last = status
			if onChange != nil {
				onChange(status)
			}
		}
		if status == model.HealthHealthy {
			return status, nil
		}
		timer.Reset(m.interval)
	}
}
