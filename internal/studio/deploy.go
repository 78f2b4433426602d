package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/sse"
)

const (
	routeDeploy         = "/docker-api/deploy/"
	routeDeployProgress = "/docker-api/deploy/progress/{job_id}/"
	routeDeployStream   = "/docker-api/deploy/progress/stream/{job_id}/"
)

// Deploy asks the backend to deploy a model. A 2xx response is returned as
// decoded, including bodies that carry an explicit error status; non-2xx
// responses return *APIError with any job id the body names.
func (c *Client) Deploy(ctx context.Context, req model.DeployRequest) (model.DeployResponse, error) {
	var resp model.DeployResponse
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   routeDeploy,
		route:  routeDeploy,
		body:   req,
	}, &resp); err != nil {
		return model.DeployResponse{}, err
	}
	return resp, nil
}

// DeployProgress fetches the current progress snapshot of a deployment job.
func (c *Client) DeployProgress(ctx context.Context, jobID string) (model.ProgressSnapshot, error) {
	var snap model.ProgressSnapshot
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/docker-api/deploy/progress/%s/", url.PathEscape(jobID)),
		route:  routeDeployProgress,
	}, &snap); err != nil {
		return model.ProgressSnapshot{}, err
	}
	return snap, nil
}

// ProgressStream yields snapshots from the progress event stream.
type ProgressStream struct {
	body    io.ReadCloser
	scanner *sse.Scanner
}

// ErrMalformedEvent marks an event whose payload is not a progress snapshot.
// The stream remains usable after it.
var ErrMalformedEvent = errors.New("malformed progress event")

// StreamDeployProgress opens the Server-Sent Events feed for a job. The
// stream lives until ctx is cancelled or Close is called.
func (c *Client) StreamDeployProgress(ctx context.Context, jobID string) (*ProgressStream, error) {
	body, err := c.stream(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/docker-api/deploy/progress/stream/%s/", url.PathEscape(jobID)),
		route:  routeDeployStream,
		accept: "text/event-stream",
	})
	if err != nil {
		return nil, err
	}
	return &ProgressStream{body: body, scanner: sse.NewScanner(body)}, nil
}

// Next blocks for the next snapshot. It returns io.EOF when the server ends
// the stream and an error wrapping ErrMalformedEvent for undecodable events.
func (s *ProgressStream) Next() (model.ProgressSnapshot, error) {
	if !s.scanner.Next() {
		if err := s.scanner.Err(); err != nil {
			return model.ProgressSnapshot{}, err
		}
		return model.ProgressSnapshot{}, io.EOF
	}
	var snap model.ProgressSnapshot
	if err := json.Unmarshal([]byte(s.scanner.Event().Data), &snap); err != nil {
		return model.ProgressSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return snap, nil
}

// Close releases the underlying connection. Safe to call more than once.
func (s *ProgressStream) Close() error {
	return s.body.Close()
}
