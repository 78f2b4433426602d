package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/metrics"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/studio"
)

// Deployer issues the deploy call.
type Deployer interface {
	Deploy(ctx context.Context, req model.DeployRequest) (model.DeployResponse, error)
}

// Starter begins progress tracking for a job. *progress.Tracker and
// *Sessions implement it.
type Starter interface {
	Start(jobID string, preferSSE bool)
}

// Recorder persists deployment attempts.
type Recorder interface {
	Record(ctx context.Context, rec *model.DeploymentRecord) error
	UpdateStatus(ctx context.Context, jobID, status, message string) error
}

// Result is the outcome of one deploy call. JobID may be set even when
// Success is false, for a job the backend started and then rejected.
type Result struct {
	Success  bool   `json:"success"`
	JobID    string `json:"job_id,omitempty"`
	Message  string `json:"message,omitempty"`
	Tracking bool   `json:"tracking"`
	Err      error  `json:"-"`
}

// Completed reports whether the backend finished the deployment
// synchronously.
func (r Result) Completed() bool {
	return r.Success && r.JobID == ""
}

// Trigger starts deployments and hands accepted jobs to a Starter.
type Trigger struct {
	client    Deployer
	starter   Starter
	recorder  Recorder
	preferSSE bool
	logger    zerolog.Logger
}

// Option customises a Trigger.
type Option func(*Trigger)

// WithRecorder records every attempt.
func WithRecorder(r Recorder) Option {
	return func(t *Trigger) {
		t.recorder = r
	}
}

// PreferSSE selects the event stream over polling for new sessions.
func PreferSSE(prefer bool) Option {
	return func(t *Trigger) {
		t.preferSSE = prefer
	}
}

func NewTrigger(client Deployer, starter Starter, logger zerolog.Logger, opts ...Option) *Trigger {
	t := &Trigger{
		client:    client,
		starter:   starter,
		preferSSE: true,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ErrModelRequired is returned for a request without a model id.
var ErrModelRequired = errors.New("model_id is required")

// Deploy issues one deploy request. Backend failures are reported through
// Result, not the error; the error is only set for an invalid request.
func (t *Trigger) Deploy(ctx context.Context, req model.DeployRequest) (Result, error) {
	if req.ModelID == "" {
		return Result{}, ErrModelRequired
	}
	logger := t.logger.With().Str("model_id", req.ModelID).Str("weights_id", req.WeightsID).Logger()

	resp, err := t.client.Deploy(ctx, req)
	if err != nil {
		res := Result{Message: err.Error(), Err: err}
		var apiErr *studio.APIError
		if errors.As(err, &apiErr) {
			res.JobID = apiErr.JobID
			if apiErr.Message != "" {
				res.Message = apiErr.Message
			}
		}
		metrics.DeploymentsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Str("job_id", res.JobID).Msg("deploy request failed")
		t.record(ctx, req, res.JobID, string(model.StatusError), res.Message)
		return res, nil
	}

	if resp.Rejected() {
		res := Result{JobID: resp.JobID, Message: resp.Message}
		if res.Message == "" {
			res.Message = "Deployment failed"
		}
		metrics.DeploymentsTotal.WithLabelValues("rejected").Inc()
		logger.Warn().Str("job_id", resp.JobID).Str("message", resp.Message).Msg("deployment rejected")
		t.record(ctx, req, resp.JobID, string(model.StatusFailed), res.Message)
		return res, nil
	}

	if resp.JobID == "" {
		metrics.DeploymentsTotal.WithLabelValues("completed").Inc()
		logger.Info().Msg("deployment completed synchronously")
		t.record(ctx, req, "", string(model.StatusCompleted), resp.Message)
		return Result{Success: true, Message: resp.Message}, nil
	}

	metrics.DeploymentsTotal.WithLabelValues("accepted").Inc()
	logger.Info().Str("job_id", resp.JobID).Msg("deployment accepted")
	t.record(ctx, req, resp.JobID, string(model.StatusQueued), resp.Message)
	t.starter.Start(resp.JobID, t.preferSSE)

	return Result{Success: true, JobID: resp.JobID, Message: resp.Message, Tracking: true}, nil
}

func (t *Trigger) record(ctx context.Context, req model.DeployRequest, jobID, status, message string) {
	if t.recorder == nil {
		return
	}
	if jobID == "" {
		jobID = "local-" + uuid.NewString()
	}
	rec := &model.DeploymentRecord{
		JobID:     jobID,
		ModelID:   req.ModelID,
		WeightsID: req.WeightsID,
		Status:    status,
		Message:   message,
	}
	if err := t.recorder.Record(ctx, rec); err != nil {
		t.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to record deployment")
	}
}

// RecordOutcome returns a tracker OnEnd hook that writes the final status of
// a tracked job to r.
func RecordOutcome(r Recorder, logger zerolog.Logger) func(progress.Status) {
	return func(st progress.Status) {
		status, message := outcome(st)
		if err := r.UpdateStatus(context.Background(), st.JobID, status, message); err != nil {
			logger.Warn().Err(err).Str("job_id", st.JobID).Msg("failed to record deployment outcome")
		}
	}
}

func outcome(st progress.Status) (string, string) {
	if st.Err != nil {
		return string(model.StatusError), fmt.Sprintf("tracking failed: %v", st.Err)
	}
	return string(st.Snapshot.Status), st.Snapshot.Message
}
