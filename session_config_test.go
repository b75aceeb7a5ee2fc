package copilot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/armatrix/copilot-sdk-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateRequest_Wire(t *testing.T) {
	cfg := &SessionConfig{
		Model:         DefaultModel,
		Streaming:     true,
		SystemMessage: &SystemMessageConfig{Mode: SystemMessageAppend, Content: "Be brief."},
		Tools: []Tool{{Name: "echo", Description: "Echo input", Handler: func(context.Context, ToolInvocation) (ToolResult, error) {
			return TextResult("ok"), nil
		}}},
		MCPServers: map[string]mcp.ServerConfig{
			"github": {Type: mcp.TypeHTTP, URL: "https://api.githubcopilot.com/mcp/"},
		},
		CustomAgents: []CustomAgentConfig{{Name: "sre", Prompt: "You are an SRE.", MCPServers: map[string]mcp.ServerConfig{
			"k8s": {Command: "kubectl-mcp"},
		}}},
		OnPermissionRequest: PermissionHandler.ApproveAll,
	}

	req, reg, err := buildCreateRequest(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, reg.Names())

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "gpt-4.1",
		"tools": [{"name": "echo", "description": "Echo input"}],
		"systemMessage": {"mode": "append", "content": "Be brief."},
		"requestPermission": true,
		"streaming": true,
		"mcpServers": {"github": {"type": "http", "url": "https://api.githubcopilot.com/mcp/", "tools": ["*"]}},
		"customAgents": [{"name": "sre", "prompt": "You are an SRE.", "mcpServers": {"k8s": {"type": "local", "command": "kubectl-mcp", "tools": ["*"]}}}]
	}`, string(b))
}

func TestBuildCreateRequest_Invalid(t *testing.T) {
	_, _, err := buildCreateRequest(&SessionConfig{SystemMessage: &SystemMessageConfig{Mode: "prepend"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, _, err = buildCreateRequest(&SessionConfig{CustomAgents: []CustomAgentConfig{{Prompt: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, _, err = buildCreateRequest(&SessionConfig{MCPServers: map[string]mcp.ServerConfig{"bad": {Type: mcp.TypeHTTP}}})
	assert.ErrorIs(t, err, mcp.ErrInvalidConfig)

	_, _, err = buildCreateRequest(&SessionConfig{Tools: []Tool{{Name: "nohandler"}}})
	assert.ErrorIs(t, err, ErrInvalidTool)
}

func TestBuildCreateRequest_Nil(t *testing.T) {
	req, reg, err := buildCreateRequest(nil)
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestBuildResumeRequest(t *testing.T) {
	req, _, err := buildResumeRequest("sess-7", &ResumeSessionConfig{Streaming: true})
	require.NoError(t, err)
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId": "sess-7", "streaming": true}`, string(b))
}
