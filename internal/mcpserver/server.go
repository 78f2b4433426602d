package mcpserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes studio operations as MCP tools over streamable HTTP.
type Server struct {
	router chi.Router
	logger zerolog.Logger
	cfg    *Config
}

// New builds the MCP server. Each configured group is mounted at
// /mcp/{group}; /mcp/all carries every enabled tool.
func New(cfg *Config, deps Deps, version string, logger zerolog.Logger) *Server {
	available := BuildTools(deps, cfg, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	groups := make(map[string][]server.ServerTool)
	for name, gc := range cfg.Groups {
		for _, toolName := range gc.Tools {
			tool, ok := available[toolName]
			if !ok {
				logger.Warn().Str("group", name).Str("tool", toolName).Msg("unknown or disabled tool in group")
				continue
			}
			groups[name] = append(groups[name], tool)
		}
	}

	var allTools []server.ServerTool
	for _, name := range sortedKeys(available) {
		allTools = append(allTools, available[name])
	}

	router.Route("/mcp", func(r chi.Router) {
		for groupName, tools := range groups {
			groupDesc := cfg.Groups[groupName].Description
			if groupDesc == "" {
				groupDesc = "TT Studio " + groupName + " tools"
			}

			mcpSrv := server.NewMCPServer(
				"tt-studio-"+groupName,
				version,
				server.WithInstructions(groupDesc),
			)
			mcpSrv.AddTools(tools...)
			r.Mount("/"+groupName, server.NewStreamableHTTPServer(mcpSrv, server.WithEndpointPath("/")))

			logger.Info().
				Str("group", groupName).
				Int("tools", len(tools)).
				Msg("mounted MCP tool group")
		}

		allSrv := server.NewMCPServer(
			"tt-studio",
			version,
			server.WithInstructions("TT Studio: deploy models to Tenstorrent hardware, follow deployments, and check model and board health."),
		)
		allSrv.AddTools(allTools...)
		r.Mount("/all", server.NewStreamableHTTPServer(allSrv, server.WithEndpointPath("/")))
		logger.Info().Int("tools", len(allTools)).Msg("mounted unified MCP endpoint at /mcp/all")

		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			var lines []string
			for _, name := range sortedKeys(groups) {
				lines = append(lines, fmt.Sprintf(`{"name":%q,"endpoint":"/mcp/%s","tools":%d,"description":%q}`,
					name, name, len(groups[name]), cfg.Groups[name].Description))
			}
			lines = append(lines, fmt.Sprintf(`{"name":"all","endpoint":"/mcp/all","tools":%d,"description":"All tools from every group"}`, len(allTools)))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("[" + strings.Join(lines, ",") + "]"))
		})
	})

	return &Server{
		router: router,
		logger: logger,
		cfg:    cfg,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
