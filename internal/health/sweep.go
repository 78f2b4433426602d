package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/model"
)

// Lister enumerates the deployed models to sweep.
type Lister interface {
	ListContainers(ctx context.Context) ([]model.Container, error)
}

// Sweeper periodically checks every deployed model. Each pass syncs the
// registry with the current container list, then refreshes all entries.
type Sweeper struct {
	lister   Lister
	checker  *Checker
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	handles map[string]Handle
	last    map[string]model.HealthStatus
}

func NewSweeper(lister Lister, checker *Checker, registry *Registry, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		lister:   lister,
		checker:  checker,
		registry: registry,
		interval: interval,
		logger:   logger,
		handles:  make(map[string]Handle),
		last:     make(map[string]model.HealthStatus),
	}
}

// Run sweeps immediately and then on every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("health sweep incomplete")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	containers, err := s.lister.ListContainers(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(containers))
	s.mu.Lock()
	for _, c := range containers {
		seen[c.ID] = true
		if _, ok := s.handles[c.ID]; !ok {
			s.handles[c.ID] = s.registry.Register(c.ID, s.refresh(c.ID))
		}
	}
	for id, h := range s.handles {
		if !seen[id] {
			s.registry.Unregister(h)
			delete(s.handles, id)
			delete(s.last, id)
		}
	}
	s.mu.Unlock()

	return s.registry.RefreshAll(ctx)
}

// Last returns the most recent status seen for deployID.
func (s *Sweeper) Last(deployID string) (model.HealthStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.last[deployID]
	return status, ok
}

func (s *Sweeper) refresh(deployID string) RefreshFunc {
	return func(ctx context.Context) error {
		status, err := s.checker.Check(ctx, deployID)

		s.mu.Lock()
		prev, known := s.last[deployID]
		if _, tracked := s.handles[deployID]; tracked {
			s.last[deployID] = status
		}
		s.mu.Unlock()

		if !known || prev != status {
			s.logger.Info().Str("deploy_id", deployID).Str("status", string(status)).Msg("model health changed")
		}
		return err
	}
}
