package copilot

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/armatrix/copilot-sdk-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests drive a real Copilot CLI and run only when COPILOT_CLI_PATH
// points at one.
func newE2EClient(t *testing.T) *Client {
	t.Helper()
	path := os.Getenv(envCLIPath)
	if path == "" {
		t.Skip("COPILOT_CLI_PATH not set")
	}
	c := NewClient(&ClientOptions{CLIPath: path, UseStdio: Bool(true)})
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func TestE2E_AgentSelection(t *testing.T) {
	c := newE2EClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := c.CreateSession(ctx, &SessionConfig{
		CustomAgents: []CustomAgentConfig{
			{Name: "test-agent", DisplayName: "Test Agent", Description: "A test agent", Prompt: "You are a test agent."},
			{Name: "another-agent", DisplayName: "Another Agent", Prompt: "You are another agent."},
		},
	})
	require.NoError(t, err)

	list, err := s.RPC.Agent.List(ctx)
	require.NoError(t, err)
	var names []string
	for _, a := range list.Agents {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "test-agent")

	sel, err := s.RPC.Agent.Select(ctx, &rpc.SessionAgentSelectParams{Name: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "test-agent", sel.Agent.Name)

	cur, err := s.RPC.Agent.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur.Agent)
	assert.Equal(t, "test-agent", cur.Agent.Name)

	_, err = s.RPC.Agent.Deselect(ctx)
	require.NoError(t, err)
	cur, err = s.RPC.Agent.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur.Agent)
}

func TestE2E_SendAndWait(t *testing.T) {
	c := newE2EClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := c.CreateSession(ctx, &SessionConfig{Model: DefaultModel})
	require.NoError(t, err)
	defer s.Destroy(ctx)

	msg, err := s.SendAndWait(ctx, MessageOptions{Prompt: "What is 1+1? Reply with only the number."})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.True(t, strings.Contains(msg.Text(), "2"))

	res, err := s.RPC.Compaction.Compact(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
}
