package mcpserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the MCP server configuration loaded from mcp.yaml.
type Config struct {
	APIURL    string                  `yaml:"api_url"`
	BrowserID string                  `yaml:"browser_id"`
	PreferSSE *bool                   `yaml:"prefer_sse"`
	Groups    map[string]GroupConfig  `yaml:"groups"`
	Overrides map[string]ToolOverride `yaml:"overrides"`
}

// GroupConfig defines an MCP tool group mounted at /mcp/{group}.
type GroupConfig struct {
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
}

// ToolOverride allows per-tool customization.
type ToolOverride struct {
	Description string `yaml:"description"`
	ReadOnly    *bool  `yaml:"readonly"`
	Destructive *bool  `yaml:"destructive"`
	Idempotent  *bool  `yaml:"idempotent"`
	Disabled    bool   `yaml:"disabled"`
}

// LoadConfig reads and parses the mcp.yaml configuration file. A missing
// file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ParseConfig(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses mcp.yaml configuration from raw bytes.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse mcp config: %w", err)
	}

	if cfg.APIURL == "" {
		cfg.APIURL = "http://localhost:8000"
	}
	if len(cfg.Groups) == 0 {
		cfg.Groups = DefaultGroups()
	}

	return &cfg, nil
}

// DefaultGroups splits the tools by the part of the studio they drive.
func DefaultGroups() map[string]GroupConfig {
	return map[string]GroupConfig{
		"deployments": {
			Description: "Deploy models to the Tenstorrent board and follow deployment progress.",
			Tools:       []string{ToolDeployModel, ToolDeploymentProgress},
		},
		"models": {
			Description: "Inspect deployed models and their health.",
			Tools:       []string{ToolListModels, ToolModelHealth},
		},
		"board": {
			Description: "Inspect the accelerator board.",
			Tools:       []string{ToolBoardStatus},
		},
	}
}

// preferSSE reports the configured transport preference, defaulting to SSE.
func (c *Config) preferSSE() bool {
	return c.PreferSSE == nil || *c.PreferSSE
}
