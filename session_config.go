package copilot

import (
	"fmt"

	"github.com/armatrix/copilot-sdk-go/hook"
	"github.com/armatrix/copilot-sdk-go/mcp"
)

// System message modes.
const (
	SystemMessageAppend  = "append"
	SystemMessageReplace = "replace"
)

// SystemMessageConfig customizes the system prompt. Mode "append" (default)
// adds Content to the CLI's prompt; "replace" substitutes it entirely.
type SystemMessageConfig struct {
	Mode    string `json:"mode,omitempty"`
	Content string `json:"content,omitempty"`
}

// ProviderConfig routes inference to a bring-your-own-key provider.
type ProviderConfig struct {
	Type        string                `json:"type,omitempty"`    // "openai", "azure" or "anthropic"
	WireApi     string                `json:"wireApi,omitempty"` // "completions" or "responses"
	BaseURL     string                `json:"baseUrl"`
	APIKey      string                `json:"apiKey,omitempty"`
	BearerToken string                `json:"bearerToken,omitempty"`
	Azure       *AzureProviderOptions `json:"azure,omitempty"`
}

// AzureProviderOptions holds Azure-specific provider settings.
type AzureProviderOptions struct {
	APIVersion string `json:"apiVersion,omitempty"`
}

// CustomAgentConfig defines a custom agent the session can select.
type CustomAgentConfig struct {
	Name        string                      `json:"name" yaml:"name"`
	DisplayName string                      `json:"displayName,omitempty" yaml:"display_name,omitempty"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []string                    `json:"tools,omitempty" yaml:"tools,omitempty"`
	Prompt      string                      `json:"prompt" yaml:"prompt"`
	MCPServers  map[string]mcp.ServerConfig `json:"mcpServers,omitempty" yaml:"mcp_servers,omitempty"`
	Infer       *bool                       `json:"infer,omitempty" yaml:"infer,omitempty"`
}

// SessionConfig configures CreateSession.
type SessionConfig struct {
	// SessionID requests a specific ID. Empty lets the CLI assign one.
	SessionID string

	// Model is the model ID, e.g. DefaultModel. Empty uses the CLI default.
	Model string

	Tools          []Tool
	SystemMessage  *SystemMessageConfig
	AvailableTools []string
	ExcludedTools  []string

	// Streaming enables assistant.message_delta events.
	Streaming bool

	Provider *ProviderConfig

	// OnPermissionRequest answers permission.request calls. Nil denies them.
	OnPermissionRequest PermissionHandlerFunc

	Hooks        []hook.Matcher
	MCPServers   map[string]mcp.ServerConfig
	CustomAgents []CustomAgentConfig

	// WorkingDirectory is the directory the session's built-in tools act in.
	WorkingDirectory string

	// OnEvent is subscribed before the session is created so that no early
	// event is missed.
	OnEvent SessionEventHandler
}

// ResumeSessionConfig configures ResumeSession.
type ResumeSessionConfig struct {
	Tools               []Tool
	Streaming           bool
	Provider            *ProviderConfig
	OnPermissionRequest PermissionHandlerFunc
	Hooks               []hook.Matcher
	MCPServers          map[string]mcp.ServerConfig
	CustomAgents        []CustomAgentConfig
	OnEvent             SessionEventHandler
}

// MessageOptions is one user turn.
type MessageOptions struct {
	Prompt      string
	Attachments []Attachment
	// Mode is "enqueue" (default) or "immediate".
	Mode string
}

// Attachment is a file or directory attached to a message.
type Attachment struct {
	Type        string `json:"type"` // "file" or "directory"
	Path        string `json:"path"`
	DisplayName string `json:"displayName,omitempty"`
}

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type createSessionRequest struct {
	Model             string                      `json:"model,omitempty"`
	SessionID         string                      `json:"sessionId,omitempty"`
	Tools             []toolDefinition            `json:"tools,omitempty"`
	SystemMessage     *SystemMessageConfig        `json:"systemMessage,omitempty"`
	AvailableTools    []string                    `json:"availableTools,omitempty"`
	ExcludedTools     []string                    `json:"excludedTools,omitempty"`
	Provider          *ProviderConfig             `json:"provider,omitempty"`
	RequestPermission bool                        `json:"requestPermission,omitempty"`
	Streaming         bool                        `json:"streaming,omitempty"`
	MCPServers        map[string]mcp.ServerConfig `json:"mcpServers,omitempty"`
	CustomAgents      []CustomAgentConfig         `json:"customAgents,omitempty"`
	WorkingDirectory  string                      `json:"workingDirectory,omitempty"`
}

type createSessionResponse struct {
	SessionID     string `json:"sessionId"`
	WorkspacePath string `json:"workspacePath,omitempty"`
}

type resumeSessionRequest struct {
	SessionID         string                      `json:"sessionId"`
	Tools             []toolDefinition            `json:"tools,omitempty"`
	Provider          *ProviderConfig             `json:"provider,omitempty"`
	RequestPermission bool                        `json:"requestPermission,omitempty"`
	Streaming         bool                        `json:"streaming,omitempty"`
	MCPServers        map[string]mcp.ServerConfig `json:"mcpServers,omitempty"`
	CustomAgents      []CustomAgentConfig         `json:"customAgents,omitempty"`
}

type sendRequest struct {
	SessionID   string       `json:"sessionId"`
	Prompt      string       `json:"prompt"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mode        string       `json:"mode,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
}

// buildCreateRequest validates cfg and returns the session.create params
// together with the tool registry backing tool.call dispatch.
func buildCreateRequest(cfg *SessionConfig) (createSessionRequest, *ToolRegistry, error) {
	if cfg == nil {
		cfg = &SessionConfig{}
	}
	reg, err := NewToolRegistry(cfg.Tools...)
	if err != nil {
		return createSessionRequest{}, nil, err
	}
	if err := validateMCP(cfg.MCPServers, cfg.CustomAgents); err != nil {
		return createSessionRequest{}, nil, err
	}
	if sm := cfg.SystemMessage; sm != nil && sm.Mode != "" && sm.Mode != SystemMessageAppend && sm.Mode != SystemMessageReplace {
		return createSessionRequest{}, nil, fmt.Errorf("%w: system message mode %q", ErrInvalidOptions, sm.Mode)
	}
	return createSessionRequest{
		Model:             cfg.Model,
		SessionID:         cfg.SessionID,
		Tools:             reg.definitions(),
		SystemMessage:     cfg.SystemMessage,
		AvailableTools:    cfg.AvailableTools,
		ExcludedTools:     cfg.ExcludedTools,
		Provider:          cfg.Provider,
		RequestPermission: cfg.OnPermissionRequest != nil,
		Streaming:         cfg.Streaming,
		MCPServers:        mcp.NormalizeAll(cfg.MCPServers),
		CustomAgents:      normalizeAgents(cfg.CustomAgents),
		WorkingDirectory:  cfg.WorkingDirectory,
	}, reg, nil
}

func buildResumeRequest(sessionID string, cfg *ResumeSessionConfig) (resumeSessionRequest, *ToolRegistry, error) {
	if cfg == nil {
		cfg = &ResumeSessionConfig{}
	}
	reg, err := NewToolRegistry(cfg.Tools...)
	if err != nil {
		return resumeSessionRequest{}, nil, err
	}
	if err := validateMCP(cfg.MCPServers, cfg.CustomAgents); err != nil {
		return resumeSessionRequest{}, nil, err
	}
	return resumeSessionRequest{
		SessionID:         sessionID,
		Tools:             reg.definitions(),
		Provider:          cfg.Provider,
		RequestPermission: cfg.OnPermissionRequest != nil,
		Streaming:         cfg.Streaming,
		MCPServers:        mcp.NormalizeAll(cfg.MCPServers),
		CustomAgents:      normalizeAgents(cfg.CustomAgents),
	}, reg, nil
}

func validateMCP(servers map[string]mcp.ServerConfig, agents []CustomAgentConfig) error {
	if err := mcp.ValidateAll(servers); err != nil {
		return err
	}
	for _, a := range agents {
		if a.Name == "" {
			return fmt.Errorf("%w: custom agent without name", ErrInvalidOptions)
		}
		if err := mcp.ValidateAll(a.MCPServers); err != nil {
			return fmt.Errorf("agent %q: %w", a.Name, err)
		}
	}
	return nil
}

func normalizeAgents(agents []CustomAgentConfig) []CustomAgentConfig {
	if len(agents) == 0 {
		return nil
	}
	out := make([]CustomAgentConfig, len(agents))
	for i, a := range agents {
		a.MCPServers = mcp.NormalizeAll(a.MCPServers)
		out[i] = a
	}
	return out
}
