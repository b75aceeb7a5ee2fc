// Package config loads layered settings files and custom agent definitions
// for the example agents.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/mcp"
	"github.com/armatrix/copilot-sdk-go/permission"
)

// DirName is the per-user and per-project settings directory name.
const DirName = ".copilot-agents"

// Settings holds merged configuration from multiple sources.
// Later sources override earlier ones (user < project < local).
type Settings struct {
	Model          string                      `json:"model,omitempty"`
	SystemPrompt   string                      `json:"systemPrompt,omitempty"`
	Streaming      *bool                       `json:"streaming,omitempty"`
	AvailableTools []string                    `json:"availableTools,omitempty"`
	ExcludedTools  []string                    `json:"excludedTools,omitempty"`
	PermissionMode string                      `json:"permissionMode,omitempty"`
	Permissions    []RuleSpec                  `json:"permissions,omitempty"`
	MCPServers     map[string]mcp.ServerConfig `json:"mcpServers,omitempty"`
	AgentDirs      []string                    `json:"agentDirs,omitempty"`
	Custom         map[string]any              `json:"custom,omitempty"`
}

// RuleSpec is the settings-file form of a permission rule.
type RuleSpec struct {
	Kind     string `json:"kind,omitempty"`
	Pattern  string `json:"pattern"`
	Decision string `json:"decision"`
}

// LoadSettings merges settings from multiple JSONC file paths.
// Later paths override earlier ones. Missing files are skipped; a file that
// exists but cannot be parsed is an error.
func LoadSettings(paths ...string) (*Settings, error) {
	merged := &Settings{}
	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		mergeSettings(merged, s)
	}
	return merged, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string

	if home != "" {
		paths = append(paths, filepath.Join(home, DirName, "settings.jsonc"))
	}
	if projectDir != "" {
		paths = append(paths,
			filepath.Join(projectDir, DirName, "settings.jsonc"),
			filepath.Join(projectDir, DirName, "settings.local.jsonc"),
		)
	}
	return paths
}

// DefaultAgentDirs returns the standard custom agent search directories.
func DefaultAgentDirs(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var dirs []string
	if home != "" {
		dirs = append(dirs, filepath.Join(home, DirName, "agents"))
	}
	if projectDir != "" {
		dirs = append(dirs, filepath.Join(projectDir, DirName, "agents"))
	}
	return dirs
}

// Rules converts the permission specs to checker rules.
func (s *Settings) Rules() ([]permission.Rule, error) {
	rules := make([]permission.Rule, 0, len(s.Permissions))
	for i, spec := range s.Permissions {
		d, ok := permission.ParseDecision(spec.Decision)
		if !ok {
			return nil, fmt.Errorf("permissions[%d]: unknown decision %q", i, spec.Decision)
		}
		if spec.Pattern == "" {
			return nil, fmt.Errorf("permissions[%d]: empty pattern", i)
		}
		rules = append(rules, permission.Rule{Kind: permission.Kind(spec.Kind), Pattern: spec.Pattern, Decision: d})
	}
	return rules, nil
}

// Mode parses PermissionMode. Empty means permission.ModeDefault.
func (s *Settings) Mode() (permission.Mode, error) {
	switch s.PermissionMode {
	case "", "default":
		return permission.ModeDefault, nil
	case "read-only":
		return permission.ModeReadOnly, nil
	case "approve-all":
		return permission.ModeApproveAll, nil
	}
	return permission.ModeDefault, fmt.Errorf("unknown permission mode %q", s.PermissionMode)
}

// Checker builds a permission checker from Mode and Rules.
func (s *Settings) Checker() (*permission.Checker, error) {
	mode, err := s.Mode()
	if err != nil {
		return nil, err
	}
	rules, err := s.Rules()
	if err != nil {
		return nil, err
	}
	return permission.NewChecker(mode, rules...), nil
}

// Apply overlays the settings onto cfg. Fields already set on cfg win,
// except SystemPrompt which is appended.
func (s *Settings) Apply(cfg *copilot.SessionConfig) {
	if cfg.Model == "" {
		cfg.Model = s.Model
	}
	if s.Streaming != nil && !cfg.Streaming {
		cfg.Streaming = *s.Streaming
	}
	if len(cfg.AvailableTools) == 0 {
		cfg.AvailableTools = s.AvailableTools
	}
	if len(cfg.ExcludedTools) == 0 {
		cfg.ExcludedTools = s.ExcludedTools
	}
	if s.SystemPrompt != "" {
		if cfg.SystemMessage == nil {
			cfg.SystemMessage = &copilot.SystemMessageConfig{Mode: copilot.SystemMessageAppend}
		}
		if cfg.SystemMessage.Content != "" {
			cfg.SystemMessage.Content += "\n\n"
		}
		cfg.SystemMessage.Content += s.SystemPrompt
	}
	for name, srv := range s.MCPServers {
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]mcp.ServerConfig)
		}
		if _, exists := cfg.MCPServers[name]; !exists {
			cfg.MCPServers[name] = srv
		}
	}
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(jsonc.ToJSON(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func mergeSettings(dst, src *Settings) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.SystemPrompt != "" {
		dst.SystemPrompt = src.SystemPrompt
	}
	if src.Streaming != nil {
		dst.Streaming = src.Streaming
	}
	if len(src.AvailableTools) > 0 {
		dst.AvailableTools = src.AvailableTools
	}
	if len(src.ExcludedTools) > 0 {
		dst.ExcludedTools = src.ExcludedTools
	}
	if src.PermissionMode != "" {
		dst.PermissionMode = src.PermissionMode
	}
	// Rules accumulate so a project can add denies on top of user allows.
	dst.Permissions = append(dst.Permissions, src.Permissions...)
	for name, srv := range src.MCPServers {
		if dst.MCPServers == nil {
			dst.MCPServers = make(map[string]mcp.ServerConfig)
		}
		dst.MCPServers[name] = srv
	}
	dst.AgentDirs = append(dst.AgentDirs, src.AgentDirs...)
	for k, v := range src.Custom {
		if dst.Custom == nil {
			dst.Custom = make(map[string]any)
		}
		dst.Custom[k] = v
	}
}
