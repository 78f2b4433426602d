package studio

import (
	"bufio"
	"context"
	"net/http"

	"github.com/tt-studio/console/internal/model"
)

const (
	routeContainers = "/docker-api/get_containers/"
	routeResetBoard = "/docker-api/reset_board/"
)

// ListContainers returns the model containers currently deployed.
func (c *Client) ListContainers(ctx context.Context) ([]model.Container, error) {
	var containers []model.Container
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   routeContainers,
		route:  routeContainers,
	}, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// ResetBoard triggers a hardware reset. The backend streams plaintext
// progress; each line is passed to onLine as it arrives. A non-2xx status
// is returned as *APIError before any line is delivered.
func (c *Client) ResetBoard(ctx context.Context, onLine func(string)) error {
	body, err := c.stream(ctx, request{
		method: http.MethodPost,
		path:   routeResetBoard,
		route:  routeResetBoard,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	return scanner.Err()
}
