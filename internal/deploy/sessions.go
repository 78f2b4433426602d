package deploy

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/progress"
)

// Sessions keeps one progress tracker per job id, for surfaces that follow
// several deployments at once.
type Sessions struct {
	source   progress.Source
	logger   zerolog.Logger
	interval time.Duration
	opts     []progress.TrackerOption

	mu       sync.Mutex
	trackers map[string]*progress.Tracker
}

func NewSessions(source progress.Source, logger zerolog.Logger, interval time.Duration, opts ...progress.TrackerOption) *Sessions {
	return &Sessions{
		source:   source,
		logger:   logger,
		interval: interval,
		opts:     opts,
		trackers: make(map[string]*progress.Tracker),
	}
}

// Start begins (or restarts) tracking jobID.
func (s *Sessions) Start(jobID string, preferSSE bool) {
	s.mu.Lock()
	tr, ok := s.trackers[jobID]
	if !ok {
		transport := progress.NewTransport(s.source, s.logger, progress.WithInterval(s.interval))
		tr = progress.NewTracker(transport, s.logger, s.opts...)
		s.trackers[jobID] = tr
	}
	s.mu.Unlock()

	tr.Start(jobID, preferSSE)
}

// Get returns the tracker for jobID.
func (s *Sessions) Get(jobID string) (*progress.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.trackers[jobID]
	return tr, ok
}

// Stop ends tracking of jobID but keeps its last status. It reports whether
// the job was known.
func (s *Sessions) Stop(jobID string) bool {
	tr, ok := s.Get(jobID)
	if ok {
		tr.Stop()
	}
	return ok
}

// Forget stops jobID and drops it from the registry.
func (s *Sessions) Forget(jobID string) {
	s.mu.Lock()
	tr, ok := s.trackers[jobID]
	delete(s.trackers, jobID)
	s.mu.Unlock()

	if ok {
		tr.Close()
	}
}

// Prune forgets jobs whose tracking ended before cutoff and returns how many
// were dropped. Live sessions are never pruned.
func (s *Sessions) Prune(cutoff time.Time) int {
	s.mu.Lock()
	var expired []*progress.Tracker
	for jobID, tr := range s.trackers {
		st := tr.Status()
		if st.Tracking() || st.FinishedAt.IsZero() || !st.FinishedAt.Before(cutoff) {
			continue
		}
		delete(s.trackers, jobID)
		expired = append(expired, tr)
	}
	s.mu.Unlock()

	for _, tr := range expired {
		tr.Close()
	}
	return len(expired)
}

// RunPruner drops ended sessions once they are older than retention. It
// blocks until ctx is done.
func (s *Sessions) RunPruner(ctx context.Context, retention time.Duration) error {
	ticker := time.NewTicker(max(retention/4, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Prune(now.Add(-retention)); n > 0 {
				s.logger.Debug().Int("count", n).Msg("pruned ended deployment sessions")
			}
		}
	}
}

// List returns the status of every known job, oldest first.
func (s *Sessions) List() []progress.Status {
	s.mu.Lock()
	trackers := make([]*progress.Tracker, 0, len(s.trackers))
	for _, tr := range s.trackers {
		trackers = append(trackers, tr)
	}
	s.mu.Unlock()

	out := make([]progress.Status, 0, len(trackers))
	for _, tr := range trackers {
		out = append(out, tr.Status())
	}
	slices.SortFunc(out, func(a, b progress.Status) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// Active counts jobs that are still being tracked.
func (s *Sessions) Active() int {
	n := 0
	for _, st := range s.List() {
		if st.Tracking() {
			n++
		}
	}
	return n
}

// Close stops every session and waits for their goroutines.
func (s *Sessions) Close() {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*progress.Tracker)
	s.mu.Unlock()

	for _, tr := range trackers {
		tr.Close()
	}
}
