package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/studio"
)

type mockDeployer struct {
	mock.Mock
}

func (m *mockDeployer) Deploy(ctx context.Context, req model.DeployRequest) (model.DeployResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.DeployResponse), args.Error(1)
}

type startCall struct {
	jobID     string
	preferSSE bool
}

type recordingStarter struct {
	mu    sync.Mutex
	calls []startCall
}

func (s *recordingStarter) Start(jobID string, preferSSE bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, startCall{jobID, preferSSE})
}

type memRecorder struct {
	mu      sync.Mutex
	records map[string]model.DeploymentRecord
}

func newMemRecorder() *memRecorder {
	return &memRecorder{records: make(map[string]model.DeploymentRecord)}
}

func (r *memRecorder) Record(_ context.Context, rec *model.DeploymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.JobID] = *rec
	return nil
}

func (r *memRecorder) UpdateStatus(_ context.Context, jobID, status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[jobID]
	if !ok {
		return errors.New("not found")
	}
	rec.Status = status
	rec.Message = message
	r.records[jobID] = rec
	return nil
}

func (r *memRecorder) only(t *testing.T) model.DeploymentRecord {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.records, 1)
	for _, rec := range r.records {
		return rec
	}
	return model.DeploymentRecord{}
}

var req = model.DeployRequest{ModelID: "llama-3.1-8b", WeightsID: "default"}

func TestTrigger_AcceptedStartsTracking(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{Status: "success", JobID: "abc123"}, nil)
	starter := &recordingStarter{}
	rec := newMemRecorder()

	trig := NewTrigger(client, starter, zerolog.Nop(), WithRecorder(rec), PreferSSE(false))
	res, err := trig.Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "abc123", res.JobID)
	assert.True(t, res.Tracking)
	assert.False(t, res.Completed())
	assert.Equal(t, []startCall{{"abc123", false}}, starter.calls)

	stored := rec.only(t)
	assert.Equal(t, "abc123", stored.JobID)
	assert.Equal(t, "queued", stored.Status)
	assert.Equal(t, "llama-3.1-8b", stored.ModelID)
	client.AssertExpectations(t)
}

func TestTrigger_SynchronousCompletion(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{Status: "success", Message: "Deployed"}, nil)
	starter := &recordingStarter{}
	rec := newMemRecorder()

	res, err := NewTrigger(client, starter, zerolog.Nop(), WithRecorder(rec)).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Completed())
	assert.False(t, res.Tracking)
	assert.Empty(t, starter.calls)

	stored := rec.only(t)
	assert.Contains(t, stored.JobID, "local-")
	assert.Equal(t, "completed", stored.Status)
}

func TestTrigger_RejectedWithoutJob(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{Status: "error", Message: "Deployment failed"}, nil)
	starter := &recordingStarter{}

	res, err := NewTrigger(client, starter, zerolog.Nop()).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Empty(t, res.JobID)
	assert.Equal(t, "Deployment failed", res.Message)
	assert.False(t, res.Tracking)
	assert.Empty(t, starter.calls)
}

func TestTrigger_RejectedWithJobDoesNotTrack(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{Status: "failed", JobID: "j-9"}, nil)
	starter := &recordingStarter{}
	rec := newMemRecorder()

	res, err := NewTrigger(client, starter, zerolog.Nop(), WithRecorder(rec)).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "j-9", res.JobID)
	assert.Equal(t, "Deployment failed", res.Message)
	assert.Empty(t, starter.calls)
	assert.Equal(t, "failed", rec.only(t).Status)
}

func TestTrigger_HTTPErrorCarriesJobID(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{},
		&studio.APIError{Status: 500, Message: "board busy", JobID: "j-1"})
	starter := &recordingStarter{}

	res, err := NewTrigger(client, starter, zerolog.Nop()).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "j-1", res.JobID)
	assert.Equal(t, "board busy", res.Message)
	assert.Error(t, res.Err)
	assert.Empty(t, starter.calls)
}

func TestTrigger_NetworkError(t *testing.T) {
	client := new(mockDeployer)
	client.On("Deploy", mock.Anything, req).Return(model.DeployResponse{}, errors.New("dial tcp: connection refused"))
	starter := &recordingStarter{}

	res, err := NewTrigger(client, starter, zerolog.Nop()).Deploy(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Empty(t, res.JobID)
	assert.Contains(t, res.Message, "connection refused")
	assert.Empty(t, starter.calls)
}

func TestTrigger_RequiresModel(t *testing.T) {
	client := new(mockDeployer)
	_, err := NewTrigger(client, &recordingStarter{}, zerolog.Nop()).Deploy(context.Background(), model.DeployRequest{})
	require.ErrorIs(t, err, ErrModelRequired)
	client.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything)
}

func TestRecordOutcome(t *testing.T) {
	rec := newMemRecorder()
	require.NoError(t, rec.Record(context.Background(), &model.DeploymentRecord{JobID: "abc", Status: "queued"}))
	hook := RecordOutcome(rec, zerolog.Nop())

	hook(progress.Status{JobID: "abc", Snapshot: model.ProgressSnapshot{Status: model.StatusCompleted, Message: "Deployed"}})
	assert.Equal(t, "completed", rec.only(t).Status)
	assert.Equal(t, "Deployed", rec.only(t).Message)

	hook(progress.Status{JobID: "abc", Err: errors.New("poll failed")})
	assert.Equal(t, "error", rec.only(t).Status)
	assert.Contains(t, rec.only(t).Message, "poll failed")
}
