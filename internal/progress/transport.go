package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/metrics"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/studio"
)

// Mode is the transport currently feeding a session.
type Mode string

const (
	ModeSSE     Mode = "sse"
	ModePolling Mode = "polling"
)

// DefaultPollInterval is the polling period when none is configured.
const DefaultPollInterval = time.Second

var errStreamEnded = errors.New("progress stream ended before a terminal status")

// Sink receives what a transport session observes. gen identifies the
// session that produced the call; a consumer must ignore calls whose gen is
// not the one returned by its latest Start.
type Sink interface {
	Snapshot(gen uint64, mode Mode, snap model.ProgressSnapshot)
	Failed(gen uint64, err error)
}

// Transport runs at most one tracking session at a time, fed either by the
// progress event stream or by polling. A stream failure falls back to
// polling once; a polling failure ends the session.
type Transport struct {
	source   Source
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	mode   Mode
	jobID  string

	wg sync.WaitGroup
}

// TransportOption customises a Transport.
type TransportOption func(*Transport)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.interval = d
		}
	}
}

func NewTransport(source Source, logger zerolog.Logger, opts ...TransportOption) *Transport {
	t := &Transport{
		source:   source,
		interval: DefaultPollInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start stops any running session and begins tracking jobID. It returns the
// generation that tags every Sink call of the new session.
func (t *Transport) Start(jobID string, preferSSE bool, sink Sink) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.gen++
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.jobID = jobID
	t.mode = ModePolling
	if preferSSE {
		t.mode = ModeSSE
	}

	s := &session{
		transport: t,
		gen:       t.gen,
		jobID:     jobID,
		ctx:       ctx,
		sink:      sink,
		logger:    t.logger.With().Str("job_id", jobID).Uint64("session", t.gen).Logger(),
	}
	mode := t.mode
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		s.run(mode)
	}()

	return t.gen
}

// Stop cancels the running session, including any in-flight request. It is
// idempotent and safe to call before Start.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Transport) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	t.jobID = ""
}

// Active reports whether a session is running.
func (t *Transport) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Mode returns the mode of the current or last session.
func (t *Transport) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// JobID returns the job being tracked, or "" when idle.
func (t *Transport) JobID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobID
}

// Wait blocks until every session goroutine has exited. It must not be
// called from a Sink method.
func (t *Transport) Wait() {
	t.wg.Wait()
}

// fallback switches session gen to polling. It reports false if the session
// is no longer current.
func (t *Transport) fallback(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.cancel == nil {
		return false
	}
	t.mode = ModePolling
	return true
}

// finish ends session gen on its own initiative. It reports whether the
// session was still current.
func (t *Transport) finish(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.cancel == nil {
		return false
	}
	t.stopLocked()
	return true
}

type session struct {
	transport *Transport
	gen       uint64
	jobID     string
	ctx       context.Context
	sink      Sink
	logger    zerolog.Logger
}

func (s *session) run(mode Mode) {
	if mode == ModeSSE {
		done, err := s.stream()
		if s.ctx.Err() != nil {
			return
		}
		if done {
			s.transport.finish(s.gen)
			return
		}
		s.logger.Warn().Err(err).Msg("progress stream failed, falling back to polling")
		metrics.ProgressFallbacksTotal.Inc()
		if !s.transport.fallback(s.gen) {
			return
		}
	}
	s.poll()
}

// stream consumes the event stream. It returns done=true once a terminal
// snapshot was delivered.
func (s *session) stream() (bool, error) {
	st, err := s.transport.source.OpenProgressStream(s.ctx, s.jobID)
	if err != nil {
		return false, fmt.Errorf("open progress stream: %w", err)
	}
	defer st.Close()

	for {
		snap, err := st.Next()
		if err != nil {
			if errors.Is(err, studio.ErrMalformedEvent) {
				s.logger.Warn().Err(err).Msg("skipping progress event")
				continue
			}
			if errors.Is(err, io.EOF) {
				return false, errStreamEnded
			}
			return false, fmt.Errorf("read progress stream: %w", err)
		}
		if !s.deliver(ModeSSE, snap) {
			return false, s.ctx.Err()
		}
		if snap.Status.Terminal() {
			return true, nil
		}
	}
}

// poll fetches immediately, then once per interval. Fetches never overlap:
// a slow response makes the loop skip the ticks it missed.
func (s *session) poll() {
	ticker := time.NewTicker(s.transport.interval)
	defer ticker.Stop()

	for {
		snap, err := s.transport.source.DeployProgress(s.ctx, s.jobID)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			if s.transport.finish(s.gen) {
				s.logger.Error().Err(err).Msg("progress poll failed")
				s.sink.Failed(s.gen, fmt.Errorf("poll progress for job %s: %w", s.jobID, err))
			}
			return
		}
		if !s.deliver(ModePolling, snap) {
			return
		}
		if snap.Status.Terminal() {
			s.transport.finish(s.gen)
			return
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *session) deliver(mode Mode, snap model.ProgressSnapshot) bool {
	if s.ctx.Err() != nil {
		return false
	}
	s.sink.Snapshot(s.gen, mode, snap)
	return true
}
