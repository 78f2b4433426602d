package progress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/metrics"
	"github.com/tt-studio/console/internal/model"
)

// State is the tracker's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateTracking
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateTerminal:
		return "terminal"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of a tracker.
type Status struct {
	JobID       string                 `json:"job_id"`
	State       State                  `json:"state"`
	Mode        Mode                   `json:"mode,omitempty"`
	Snapshot    model.ProgressSnapshot `json:"snapshot"`
	HasSnapshot bool                   `json:"has_snapshot"`
	Err         error                  `json:"-"`
	StartedAt   time.Time              `json:"started_at,omitzero"`
	FinishedAt  time.Time              `json:"finished_at,omitzero"`
}

// Tracking reports whether the session is still live.
func (s Status) Tracking() bool {
	return s.State == StateTracking
}

// Elapsed is the time since Start, frozen once the session ended.
func (s Status) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if !s.FinishedAt.IsZero() {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Tracker is the deployment progress state machine: Idle → Tracking →
// Terminal. It owns a Transport and accepts snapshots only from the session
// it started most recently, and only while Tracking.
type Tracker struct {
	transport *Transport
	logger    zerolog.Logger
	now       func() time.Time
	onEnd     func(Status)

	mu     sync.Mutex
	gen    uint64
	status Status
	subs   map[uint64]chan struct{}
	nextID uint64
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// OnEnd registers fn to run once per session when it reaches Terminal. fn is
// called outside the tracker's lock.
func OnEnd(fn func(Status)) TrackerOption {
	return func(t *Tracker) {
		t.onEnd = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(transport *Transport, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		transport: transport,
		logger:    logger,
		now:       time.Now,
		subs:      make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins tracking jobID, implicitly stopping any current session.
func (t *Tracker) Start(jobID string, preferSSE bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.State == StateTracking {
		metrics.ProgressSessionsTotal.WithLabelValues("superseded").Inc()
	}
	t.status = Status{
		JobID:     jobID,
		State:     StateTracking,
		StartedAt: t.now(),
	}
	t.gen = t.transport.Start(jobID, preferSSE, trackerSink{t})
	t.logger.Info().Str("job_id", jobID).Bool("prefer_sse", preferSSE).Msg("tracking deployment")
	t.notifyLocked()
}

// Stop ends tracking without a terminal snapshot. The last snapshot stays
// observable. Idempotent; a Terminal tracker stays Terminal.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transport.Stop()
	if t.status.State != StateTracking {
		return
	}
	t.status.State = StateIdle
	t.status.FinishedAt = t.now()
	metrics.ProgressSessionsTotal.WithLabelValues("stopped").Inc()
	t.notifyLocked()
}

// Close stops tracking and waits for the transport goroutines to exit.
func (t *Tracker) Close() {
	t.Stop()
	t.transport.Wait()
}

// Status returns the current view.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.status
	if st.State == StateTracking {
		st.Mode = t.transport.Mode()
	}
	return st
}

// Snapshot returns the latest accepted snapshot.
func (t *Tracker) Snapshot() (model.ProgressSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.Snapshot, t.status.HasSnapshot
}

// IsTracking reports whether a session is live.
func (t *Tracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.State == StateTracking
}

// Subscribe returns a channel that receives a signal after every state
// change. Signals coalesce; read Status for the value. cancel must be
// called to release the subscription and closes the channel.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	ch := make(chan struct{}, 1)
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
}

// Wait blocks until the tracker leaves Tracking or ctx ends.
func (t *Tracker) Wait(ctx context.Context) (Status, error) {
	ch, cancel := t.Subscribe()
	defer cancel()

	for {
		st := t.Status()
		if !st.Tracking() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ch:
		}
	}
}

func (t *Tracker) notifyLocked() {
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (t *Tracker) accept(gen uint64, mode Mode, snap model.ProgressSnapshot) {
	t.mu.Lock()
	if gen != t.gen || t.status.State != StateTracking {
		t.mu.Unlock()
		return
	}
	// Terminal snapshots end the transport session, so they are never stale.
	if t.status.HasSnapshot && !snap.Status.Terminal() && stale(t.status.Snapshot, snap) {
		t.logger.Debug().Str("job_id", t.status.JobID).Msg("ignoring out-of-order progress snapshot")
		t.mu.Unlock()
		return
	}

	metrics.ProgressSnapshotsTotal.WithLabelValues(string(mode)).Inc()
	t.status.Snapshot = snap
	t.status.HasSnapshot = true
	t.status.Mode = mode

	var ended *Status
	if snap.Status.Terminal() {
		t.status.State = StateTerminal
		t.status.FinishedAt = t.now()
		t.transport.Stop()
		metrics.ProgressSessionsTotal.WithLabelValues(string(snap.Status)).Inc()
		t.logger.Info().
			Str("job_id", t.status.JobID).
			Str("status", string(snap.Status)).
			Msg("deployment reached terminal status")
		st := t.status
		ended = &st
	}
	t.notifyLocked()
	onEnd := t.onEnd
	t.mu.Unlock()

	if ended != nil && onEnd != nil {
		onEnd(*ended)
	}
}

func (t *Tracker) fail(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.status.State != StateTracking {
		t.mu.Unlock()
		return
	}
	t.status.State = StateTerminal
	t.status.Err = err
	t.status.FinishedAt = t.now()
	t.status.Mode = ModePolling
	t.transport.Stop()
	metrics.ProgressSessionsTotal.WithLabelValues("transport_error").Inc()
	t.logger.Error().Err(err).Str("job_id", t.status.JobID).Msg("deployment tracking failed")
	st := t.status
	t.notifyLocked()
	onEnd := t.onEnd
	t.mu.Unlock()

	if onEnd != nil {
		onEnd(st)
	}
}

// stale reports whether next is older than cur. Snapshots without
// timestamps are never considered stale.
func stale(cur, next model.ProgressSnapshot) bool {
	if cur.LastUpdated == nil || next.LastUpdated == nil {
		return false
	}
	return next.LastUpdated.Before(cur.LastUpdated.Time)
}

type trackerSink struct {
	t *Tracker
}

func (s trackerSink) Snapshot(gen uint64, mode Mode, snap model.ProgressSnapshot) {
	s.t.accept(gen, mode, snap)
}

func (s trackerSink) Failed(gen uint64, err error) {
	s.t.fail(gen, err)
}
