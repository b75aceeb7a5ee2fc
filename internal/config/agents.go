package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/mcp"
)

// LoadAgents reads custom agent definitions from .yaml and .yml files in
// dirs. The agent name defaults to the file name. Later directories override
// earlier ones for the same agent name. Missing directories are skipped.
// Agents are returned sorted by name.
func LoadAgents(dirs ...string) ([]copilot.CustomAgentConfig, error) {
	seen := make(map[string]copilot.CustomAgentConfig)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			a, err := loadAgentFile(path)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", path, err)
			}
			if a.Name == "" {
				a.Name = strings.TrimSuffix(entry.Name(), ext)
			}
			seen[a.Name] = a
		}
	}

	agents := make([]copilot.CustomAgentConfig, 0, len(seen))
	for _, a := range seen {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

func loadAgentFile(path string) (copilot.CustomAgentConfig, error) {
	var a copilot.CustomAgentConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return a, err
	}
	if err := yaml.Unmarshal(data, &a); err != nil {
		return a, err
	}
	if strings.TrimSpace(a.Prompt) == "" {
		return a, fmt.Errorf("prompt is required")
	}
	if err := mcp.ValidateAll(a.MCPServers); err != nil {
		return a, err
	}
	return a, nil
}

// FormatAgentList renders agents as "name - description" lines.
func FormatAgentList(agents []copilot.CustomAgentConfig) string {
	if len(agents) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, a := range agents {
		sb.WriteString(a.Name)
		if a.DisplayName != "" {
			sb.WriteString(" (")
			sb.WriteString(a.DisplayName)
			sb.WriteString(")")
		}
		if a.Description != "" {
			sb.WriteString(" - ")
			sb.WriteString(a.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
