package progress

import (
	"context"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/studio"
)

// Stream yields progress snapshots pushed by the backend. Next returns
// io.EOF when the server closes the stream and an error wrapping
// studio.ErrMalformedEvent for an event that should be skipped.
type Stream interface {
	Next() (model.ProgressSnapshot, error)
	Close() error
}

// Source is the part of the backend a Transport talks to.
type Source interface {
	DeployProgress(ctx context.Context, jobID string) (model.ProgressSnapshot, error)
	OpenProgressStream(ctx context.Context, jobID string) (Stream, error)
}

// ClientSource adapts a studio client to Source.
func ClientSource(c *studio.Client) Source {
	return clientSource{c}
}

type clientSource struct {
	*studio.Client
}

func (s clientSource) OpenProgressStream(ctx context.Context, jobID string) (Stream, error) {
	st, err := s.StreamDeployProgress(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return st, nil
}
