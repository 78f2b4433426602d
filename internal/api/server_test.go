package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/config"
	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/health"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
	"github.com/tt-studio/console/internal/store"
)

// fakeBackend stands in for the studio backend. Jobs complete after
// pollsToComplete progress polls.
type fakeBackend struct {
	mu              sync.Mutex
	polls           map[string]int
	pollsToComplete int
	deployResp      model.DeployResponse
	resetErr        error
	health          model.HealthStatus
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		polls:           make(map[string]int),
		pollsToComplete: 2,
		deployResp:      model.DeployResponse{Status: "success", JobID: "abc123"},
		health:          model.HealthHealthy,
	}
}

func (b *fakeBackend) Deploy(context.Context, model.DeployRequest) (model.DeployResponse, error) {
	return b.deployResp, nil
}

func (b *fakeBackend) DeployProgress(_ context.Context, jobID string) (model.ProgressSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls[jobID]++
	if b.polls[jobID] >= b.pollsToComplete {
		return model.ProgressSnapshot{Status: model.StatusCompleted, Progress: 100, Message: "Deployed"}, nil
	}
	return model.ProgressSnapshot{Status: model.StatusRunning, Stage: "Loading environment", Progress: 10}, nil
}

func (b *fakeBackend) OpenProgressStream(context.Context, string) (progress.Stream, error) {
	return nil, errors.New("streaming disabled")
}

func (b *fakeBackend) ListContainers(context.Context) ([]model.Container, error) {
	return []model.Container{{ID: "c1", Name: "llama", ImageName: "ghcr.io/tt/llama", Status: "running"}}, nil
}

func (b *fakeBackend) BoardStatus(context.Context) (model.BoardStatus, error) {
	return model.BoardStatus{BoardName: "n300", CPUUsage: 12.5}, nil
}

func (b *fakeBackend) ResetBoard(_ context.Context, onLine func(string)) error {
	onLine("resetting board")
	onLine("done")
	return b.resetErr
}

func (b *fakeBackend) RefreshBoardCache(context.Context) error {
	return nil
}

func (b *fakeBackend) ModelHealth(context.Context, string) (model.HealthStatus, error) {
	return b.health, nil
}

type testEnv struct {
	backend  *fakeBackend
	sessions *deploy.Sessions
	store    *store.Store
	server   *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *fakeBackend)) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	backend := newFakeBackend()
	cfg := &config.Config{PreferSSE: false}
	if mutate != nil {
		mutate(cfg, backend)
	}

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "console.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := deploy.NewSessions(backend, logger, 5*time.Millisecond,
		progress.OnEnd(deploy.RecordOutcome(st.Deployments, logger)))
	t.Cleanup(sessions.Close)

	trigger := deploy.NewTrigger(backend, sessions, logger, deploy.WithRecorder(st.Deployments), deploy.PreferSSE(false))
	srv := NewServer(logger, Services{
		Backend:  backend,
		Deployer: trigger,
		Sessions: sessions,
		History:  st.Deployments,
		Checker:  health.NewChecker(backend, logger),
		Ready:    st.DB().PingContext,
	}, cfg)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testEnv{backend: backend, sessions: sessions, store: st, server: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func TestServer_Healthz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"store":"ok"}`, string(body))
}

func TestServer_DeployAndTrack(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/v1/deployments", `{"model_id":"llama","weights_id":"default"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var res deploy.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "abc123", res.JobID)

	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/v1/deployments/abc123", "")
		var view struct {
			State    string                 `json:"state"`
			Snapshot model.ProgressSnapshot `json:"snapshot"`
		}
		return json.Unmarshal(body, &view) == nil && view.State == "terminal" && view.Snapshot.Status == model.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		rec, err := env.store.Deployments.Get(context.Background(), "abc123")
		return err == nil && rec.Status == "completed"
	}, 2*time.Second, 5*time.Millisecond)

	resp, body = env.do(t, http.MethodGet, "/api/v1/deployments?limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"job_id":"abc123"`)

	resp, body = env.do(t, http.MethodGet, "/api/v1/deployments/active", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"count":1`)
}

func TestServer_DeployValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/v1/deployments", `{"weights_id":"default"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "validation error")
}

func TestServer_DeployRejected(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, b *fakeBackend) {
		b.deployResp = model.DeployResponse{Status: "error", Message: "Deployment failed"}
	})

	resp, body := env.do(t, http.MethodPost, "/api/v1/deployments", `{"model_id":"llama"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), `"success":false`)
	assert.Empty(t, env.sessions.List())
}

func TestServer_DeployedModeHidesDeploy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *fakeBackend) {
		c.EnableDeployed = true
	})

	resp, _ := env.do(t, http.MethodPost, "/api/v1/deployments", `{"model_id":"llama"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/board/reset", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_GetUnknownAndStop(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/deployments/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, http.MethodDelete, "/api/v1/deployments/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"deployment not tracked","job_id":"nope"}`, string(body))

	env.backend.pollsToComplete = 1000
	env.sessions.Start("slow", false)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/deployments/slow", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	tr, ok := env.sessions.Get("slow")
	require.True(t, ok)
	assert.Equal(t, progress.StateIdle, tr.Status().State)
}

func TestServer_WatchWebsocket(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, b *fakeBackend) {
		b.pollsToComplete = 3
	})
	env.sessions.Start("abc123", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/deployments/abc123/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var last struct {
		JobID    string                 `json:"job_id"`
		State    string                 `json:"state"`
		Snapshot model.ProgressSnapshot `json:"snapshot"`
	}
	for {
		err := wsjson.Read(ctx, conn, &last)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, "abc123", last.JobID)
	assert.Equal(t, "terminal", last.State)
	assert.Equal(t, model.StatusCompleted, last.Snapshot.Status)
}

func TestServer_ModelsAndHealth(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, b *fakeBackend) {
		b.health = model.HealthUnavailable
	})

	resp, body := env.do(t, http.MethodGet, "/api/v1/models", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"image_name":"ghcr.io/tt/llama"`)

	resp, body = env.do(t, http.MethodGet, "/api/v1/models/c1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deploy_id":"c1","status":"unavailable"}`, string(body))
}

func TestServer_Board(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/v1/board", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"board_name":"n300"`)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/board/refresh", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/board/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "resetting board\ndone\n", string(body))
}

func TestServer_BoardResetFailsMidStream(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, b *fakeBackend) {
		b.resetErr = errors.New("tt-smi exited 1")
	})

	resp, body := env.do(t, http.MethodPost, "/api/v1/board/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "error: tt-smi exited 1")
}
