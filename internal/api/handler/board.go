package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/api/response"
	"github.com/tt-studio/console/internal/model"
)

// BoardBackend is the part of the backend the board endpoints need.
type BoardBackend interface {
	BoardStatus(ctx context.Context) (model.BoardStatus, error)
	ResetBoard(ctx context.Context, onLine func(string)) error
	RefreshBoardCache(ctx context.Context) error
}

type Board struct {
	backend BoardBackend
}

func NewBoard(backend BoardBackend) *Board {
	return &Board{backend: backend}
}

func (h *Board) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.backend.BoardStatus(r.Context())
	if err != nil {
		response.WriteBackendError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, status)
}

func (h *Board) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.RefreshBoardCache(r.Context()); err != nil {
		response.WriteBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset relays the backend's reset output line by line as plain text. Once
// output has started a failure can only be reported in-band.
func (h *Board) Reset(w http.ResponseWriter, r *http.Request) {
	flusher, _ := w.(http.Flusher)
	started := false

	err := h.backend.ResetBoard(r.Context(), func(line string) {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err == nil {
		if !started {
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Msg("board reset failed")
	if !started {
		response.WriteBackendError(w, err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
