package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/tt-studio/console/internal/deploy"
	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
)

const (
	ToolDeployModel        = "deploy_model"
	ToolDeploymentProgress = "deployment_progress"
	ToolListModels         = "list_models"
	ToolModelHealth        = "model_health"
	ToolBoardStatus        = "board_status"
)

const maxProgressWait = 10 * time.Minute

// Backend is the studio backend as the tools use it.
type Backend interface {
	ListContainers(ctx context.Context) ([]model.Container, error)
	BoardStatus(ctx context.Context) (model.BoardStatus, error)
}

// Deployer starts a deployment.
type Deployer interface {
	Deploy(ctx context.Context, req model.DeployRequest) (deploy.Result, error)
}

// HealthChecker checks one deployed model.
type HealthChecker interface {
	Check(ctx context.Context, deployID string) (model.HealthStatus, error)
}

// Deps is what the tool handlers call into.
type Deps struct {
	Backend  Backend
	Deployer Deployer
	Sessions *deploy.Sessions
	Checker  HealthChecker
}

type tools struct {
	deps   Deps
	cfg    *Config
	logger zerolog.Logger
}

// BuildTools returns the enabled tools keyed by name.
func BuildTools(deps Deps, cfg *Config, logger zerolog.Logger) map[string]server.ServerTool {
	t := &tools{deps: deps, cfg: cfg, logger: logger}

	defs := []struct {
		name        string
		readOnly    bool
		destructive bool
		opts        []mcp.ToolOption
		handler     server.ToolHandlerFunc
	}{
		{
			name: ToolDeployModel,
			opts: []mcp.ToolOption{
				mcp.WithDescription("Deploy a model to the board. Returns the job id to follow with deployment_progress."),
				mcp.WithString("model_id", mcp.Required(), mcp.Description("Model identifier from the model catalog")),
				mcp.WithString("weights_id", mcp.Description("Weights to load; empty selects the default weights")),
			},
			handler: t.deployModel,
		},
		{
			name:     ToolDeploymentProgress,
			readOnly: true,
			opts: []mcp.ToolOption{
				mcp.WithDescription("Report the progress of a deployment job, optionally waiting until it finishes."),
				mcp.WithString("job_id", mcp.Required(), mcp.Description("Job id returned by deploy_model")),
				mcp.WithBoolean("wait", mcp.Description("Block until the deployment reaches a final status")),
				mcp.WithNumber("timeout_seconds", mcp.Description("Maximum time to wait, default 120")),
			},
			handler: t.deploymentProgress,
		},
		{
			name:     ToolListModels,
			readOnly: true,
			opts: []mcp.ToolOption{
				mcp.WithDescription("List the model containers currently deployed."),
			},
			handler: t.listModels,
		},
		{
			name:     ToolModelHealth,
			readOnly: true,
			opts: []mcp.ToolOption{
				mcp.WithDescription("Check whether a deployed model is ready to serve requests."),
				mcp.WithString("deploy_id", mcp.Required(), mcp.Description("Container id of the deployed model")),
			},
			handler: t.modelHealth,
		},
		{
			name:     ToolBoardStatus,
			readOnly: true,
			opts: []mcp.ToolOption{
				mcp.WithDescription("Show board type, utilisation and device health."),
			},
			handler: t.boardStatus,
		},
	}

	out := make(map[string]server.ServerTool, len(defs))
	for _, d := range defs {
		override, hasOverride := cfg.Overrides[d.name]
		if hasOverride && override.Disabled {
			continue
		}
		opts := d.opts
		if hasOverride && override.Description != "" {
			opts = append(opts, mcp.WithDescription(override.Description))
		}
		opts = append(opts, buildAnnotations(d.readOnly, d.destructive, override, hasOverride)...)
		out[d.name] = server.ServerTool{
			Tool:    mcp.NewTool(d.name, opts...),
			Handler: d.handler,
		}
	}
	return out
}

// buildAnnotations derives MCP hints, letting config overrides win.
func buildAnnotations(readOnly, destructive bool, override ToolOverride, hasOverride bool) []mcp.ToolOption {
	ro, de, idem := readOnly, destructive, readOnly
	if hasOverride {
		if override.ReadOnly != nil {
			ro = *override.ReadOnly
		}
		if override.Destructive != nil {
			de = *override.Destructive
		}
		if override.Idempotent != nil {
			idem = *override.Idempotent
		}
	}
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(ro),
		mcp.WithDestructiveHintAnnotation(de),
		mcp.WithIdempotentHintAnnotation(idem),
	}
}

func (t *tools) deployModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	modelID := stringArg(args, "model_id")
	if modelID == "" {
		return mcp.NewToolResultError("missing required parameter: model_id"), nil
	}

	res, err := t.deps.Deployer.Deploy(ctx, model.DeployRequest{
		ModelID:   modelID,
		WeightsID: stringArg(args, "weights_id"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("deployment failed: %s", res.Message)), nil
	}
	return jsonResult(res)
}

func (t *tools) deploymentProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	jobID := stringArg(args, "job_id")
	if jobID == "" {
		return mcp.NewToolResultError("missing required parameter: job_id"), nil
	}

	tr, ok := t.deps.Sessions.Get(jobID)
	if !ok {
		// A job started elsewhere can still be followed from here.
		t.deps.Sessions.Start(jobID, t.cfg.preferSSE())
		tr, _ = t.deps.Sessions.Get(jobID)
	}

	st := tr.Status()
	if boolArg(args, "wait") && st.Tracking() {
		timeout := time.Duration(numberArg(args, "timeout_seconds", 120) * float64(time.Second))
		timeout = min(max(timeout, time.Second), maxProgressWait)
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		st, _ = tr.Wait(waitCtx)
	}
	return jsonResult(progressView(st))
}

func (t *tools) listModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	containers, err := t.deps.Backend.ListContainers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list models: %s", err)), nil
	}
	return jsonResult(containers)
}

func (t *tools) modelHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deployID := stringArg(req.GetArguments(), "deploy_id")
	if deployID == "" {
		return mcp.NewToolResultError("missing required parameter: deploy_id"), nil
	}
	status, err := t.deps.Checker.Check(ctx, deployID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("health check failed: %s", err)), nil
	}
	return jsonResult(map[string]string{"deploy_id": deployID, "status": string(status)})
}

func (t *tools) boardStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := t.deps.Backend.BoardStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("board status: %s", err)), nil
	}
	return jsonResult(status)
}

type progressResult struct {
	JobID    string                 `json:"job_id"`
	State    string                 `json:"state"`
	Mode     string                 `json:"mode,omitempty"`
	Snapshot model.ProgressSnapshot `json:"snapshot"`
	Elapsed  string                 `json:"elapsed"`
	Error    string                 `json:"error,omitempty"`
}

func progressView(st progress.Status) progressResult {
	v := progressResult{
		JobID:    st.JobID,
		State:    st.State.String(),
		Mode:     string(st.Mode),
		Snapshot: st.Snapshot,
		Elapsed:  st.Elapsed(time.Now()).Round(time.Second).String(),
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func numberArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
