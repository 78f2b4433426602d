package studio

import (
	"context"
	"net/http"

	"github.com/tt-studio/console/internal/model"
)

const (
	routeFooterData   = "/board-api/footer-data/"
	routeRefreshCache = "/board-api/refresh-cache/"
)

// BoardStatus returns the current system and hardware snapshot.
func (c *Client) BoardStatus(ctx context.Context) (model.BoardStatus, error) {
	var status model.BoardStatus
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   routeFooterData,
		route:  routeFooterData,
	}, &status); err != nil {
		return model.BoardStatus{}, err
	}
	return status, nil
}

// RefreshBoardCache forces the backend to re-run hardware detection.
func (c *Client) RefreshBoardCache(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   routeRefreshCache,
		route:  routeRefreshCache,
	}, nil)
}
