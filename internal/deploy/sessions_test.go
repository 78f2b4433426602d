package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
)

// staticSource reports a fixed status per job and has no event stream.
type staticSource struct {
	mu     sync.Mutex
	status map[string]model.DeploymentStatus
}

func (s *staticSource) set(jobID string, status model.DeploymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[jobID] = status
}

func (s *staticSource) DeployProgress(_ context.Context, jobID string) (model.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[jobID]
	if !ok {
		st = model.StatusRunning
	}
	return model.ProgressSnapshot{Status: st, Progress: 50}, nil
}

func (s *staticSource) OpenProgressStream(context.Context, string) (progress.Stream, error) {
	return nil, errors.New("no stream")
}

func newTestSessions(t *testing.T, opts ...progress.TrackerOption) (*Sessions, *staticSource) {
	t.Helper()
	src := &staticSource{status: make(map[string]model.DeploymentStatus)}
	s := NewSessions(src, zerolog.Nop(), 5*time.Millisecond, opts...)
	t.Cleanup(s.Close)
	return s, src
}

func TestSessions_OneTrackerPerJob(t *testing.T) {
	s, src := newTestSessions(t)
	src.set("done", model.StatusCompleted)

	s.Start("running", false)
	s.Start("done", true)

	require.Eventually(t, func() bool {
		tr, ok := s.Get("done")
		return ok && tr.Status().State == progress.StateTerminal
	}, 2*time.Second, time.Millisecond)

	tr, ok := s.Get("running")
	require.True(t, ok)
	assert.True(t, tr.IsTracking())
	assert.Equal(t, 1, s.Active())

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "running", list[0].JobID)
	assert.Equal(t, "done", list[1].JobID)
}

func TestSessions_StopAndForget(t *testing.T) {
	s, _ := newTestSessions(t)

	assert.False(t, s.Stop("unknown"))
	s.Forget("unknown")

	s.Start("job", false)
	assert.True(t, s.Stop("job"))
	tr, ok := s.Get("job")
	require.True(t, ok)
	assert.Equal(t, progress.StateIdle, tr.Status().State)
	assert.Zero(t, s.Active())

	s.Forget("job")
	_, ok = s.Get("job")
	assert.False(t, ok)
}

func TestSessions_TriggerAndOutcome(t *testing.T) {
	rec := newMemRecorder()
	s, src := newTestSessions(t, progress.OnEnd(RecordOutcome(rec, zerolog.Nop())))
	src.set("abc123", model.StatusCompleted)

	client := new(mockDeployer)
	client.On("Deploy", context.Background(), req).Return(model.DeployResponse{JobID: "abc123"}, nil)

	res, err := NewTrigger(client, s, zerolog.Nop(), WithRecorder(rec), PreferSSE(false)).Deploy(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Tracking)

	require.Eventually(t, func() bool {
		return rec.only(t).Status == "completed"
	}, 2*time.Second, time.Millisecond)
}

func TestSessions_PruneDropsEndedSessions(t *testing.T) {
	s, src := newTestSessions(t)
	src.set("done", model.StatusCompleted)

	s.Start("running", false)
	s.Start("done", false)
	require.Eventually(t, func() bool {
		tr, ok := s.Get("done")
		return ok && !tr.IsTracking()
	}, 2*time.Second, time.Millisecond)

	assert.Zero(t, s.Prune(time.Now().Add(-time.Hour)))
	assert.Len(t, s.List(), 2)

	assert.Equal(t, 1, s.Prune(time.Now().Add(time.Hour)))
	_, ok := s.Get("done")
	assert.False(t, ok)
	tr, ok := s.Get("running")
	require.True(t, ok)
	assert.True(t, tr.IsTracking())
}

func TestSessions_RunPrunerStopsOnContext(t *testing.T) {
	s, _ := newTestSessions(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunPruner(ctx, time.Minute) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop")
	}
}
