package studio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tt-studio/console/internal/model"
)

const (
	routeLogs   = "/logs-api/"
	routeLogRaw = "/logs-api/{path}/"
)

// ListLogs returns the backend's log directory tree.
func (c *Client) ListLogs(ctx context.Context) ([]model.LogNode, error) {
	var payload struct {
		Logs []model.LogNode `json:"logs"`
	}
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   routeLogs,
		route:  routeLogs,
	}, &payload); err != nil {
		return nil, err
	}
	return payload.Logs, nil
}

// GetLog streams the raw content of one log file into w.
func (c *Client) GetLog(ctx context.Context, path string, w io.Writer) error {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	body, err := c.stream(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/logs-api/%s/", strings.Join(segments, "/")),
		route:  routeLogRaw,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("read log %s: %w", path, err)
	}
	return nil
}
