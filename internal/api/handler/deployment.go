package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/api/request"
	"github.com/tt-studio/console/internal/api/response"
	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/store"
)

// Deployer starts a deployment.
type Deployer interface {
	Deploy(ctx context.Context, req model.DeployRequest) (deploy.Result, error)
}

// History reads the deployment history.
type History interface {
	Recent(ctx context.Context, limit int) ([]model.DeploymentRecord, error)
	Get(ctx context.Context, jobID string) (*model.DeploymentRecord, error)
}

type Deployment struct {
	deployer Deployer
	sessions *deploy.Sessions
	history  History
	logger   zerolog.Logger
}

func NewDeployment(deployer Deployer, sessions *deploy.Sessions, history History, logger zerolog.Logger) *Deployment {
	return &Deployment{deployer: deployer, sessions: sessions, history: history, logger: logger}
}

// deploymentView is the wire form of a tracked job.
type deploymentView struct {
	progress.Status
	Error string `json:"error,omitempty"`
}

func viewOf(st progress.Status) deploymentView {
	v := deploymentView{Status: st}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

// Create starts a deployment. Backend rejections are returned as 502 with
// the deploy result in the body.
func (h *Deployment) Create(w http.ResponseWriter, r *http.Request) {
	var req request.Deploy
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.deployer.Deploy(r.Context(), req.Model())
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case !res.Success:
		response.WriteJSON(w, http.StatusBadGateway, res)
	case res.Tracking:
		response.WriteJSON(w, http.StatusAccepted, res)
	default:
		response.WriteJSON(w, http.StatusCreated, res)
	}
}

func (h *Deployment) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.Recent(r.Context(), request.ParseLimit(r))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteList(w, records)
}

// Active lists every job the console is tracking or has tracked.
func (h *Deployment) Active(w http.ResponseWriter, r *http.Request) {
	statuses := h.sessions.List()
	views := make([]deploymentView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, viewOf(st))
	}
	response.WriteList(w, views)
}

// Get returns the live status of a tracked job, or its history record.
func (h *Deployment) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := request.RequireID(chi.URLParam(r, "jobID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if tr, ok := h.sessions.Get(jobID); ok {
		response.WriteJSON(w, http.StatusOK, viewOf(tr.Status()))
		return
	}

	rec, err := h.history.Get(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		response.WriteJobError(w, http.StatusNotFound, jobID, "deployment not found")
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, rec)
}

// Stop ends tracking of a job. The backend deployment itself continues.
func (h *Deployment) Stop(w http.ResponseWriter, r *http.Request) {
	jobID, err := request.RequireID(chi.URLParam(r, "jobID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.sessions.Stop(jobID) {
		response.WriteJobError(w, http.StatusNotFound, jobID, "deployment not tracked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Watch streams the job's status over a WebSocket: one message per change,
// closing normally after the final one.
func (h *Deployment) Watch(w http.ResponseWriter, r *http.Request) {
	jobID, err := request.RequireID(chi.URLParam(r, "jobID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	tr, ok := h.sessions.Get(jobID)
	if !ok {
		response.WriteJobError(w, http.StatusNotFound, jobID, "deployment not tracked")
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	defer ws.CloseNow()

	ctx := ws.CloseRead(r.Context())
	changes, cancel := tr.Subscribe()
	defer cancel()

	for {
		st := tr.Status()
		if err := writeStatus(ctx, ws, st); err != nil {
			h.logger.Debug().Err(err).Str("job_id", jobID).Msg("websocket write failed")
			return
		}
		if !st.Tracking() {
			ws.Close(websocket.StatusNormalClosure, st.State.String())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
	}
}

func writeStatus(ctx context.Context, ws *websocket.Conn, st progress.Status) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(ctx, ws, viewOf(st))
}
