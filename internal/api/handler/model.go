package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tt-studio/console/internal/api/request"
	"github.com/tt-studio/console/internal/api/response"
	"github.com/tt-studio/console/internal/model"
)

// ModelBackend is the part of the backend the model endpoints need.
type ModelBackend interface {
	ListContainers(ctx context.Context) ([]model.Container, error)
}

// HealthChecker checks one deployed model.
type HealthChecker interface {
	Check(ctx context.Context, deployID string) (model.HealthStatus, error)
}

type Model struct {
	backend ModelBackend
	checker HealthChecker
}

func NewModel(backend ModelBackend, checker HealthChecker) *Model {
	return &Model{backend: backend, checker: checker}
}

func (h *Model) List(w http.ResponseWriter, r *http.Request) {
	containers, err := h.backend.ListContainers(r.Context())
	if err != nil {
		response.WriteBackendError(w, err)
		return
	}
	response.WriteList(w, containers)
}

type healthResponse struct {
	DeployID string             `json:"deploy_id"`
	Status   model.HealthStatus `json:"status"`
	Error    string             `json:"error,omitempty"`
}

// Health reports the model's health. The HTTP status is 200 whenever the
// check ran; the health verdict is in the body.
func (h *Model) Health(w http.ResponseWriter, r *http.Request) {
	deployID, err := request.RequireID(chi.URLParam(r, "deployID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.checker.Check(r.Context(), deployID)
	resp := healthResponse{DeployID: deployID, Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	response.WriteJSON(w, http.StatusOK, resp)
}
