package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	copilot "github.com/armatrix/copilot-sdk-go"
)

func call(t *testing.T, opts Options, name string, args any) copilot.ToolResult {
	t.Helper()
	for _, tool := range Tools(opts) {
		if tool.Name != name {
			continue
		}
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		res, err := tool.Handler(context.Background(), copilot.ToolInvocation{ToolName: name, Arguments: raw})
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not found", name)
	return copilot.ToolResult{}
}

func decode(t *testing.T, res copilot.ToolResult) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.TextResultForLLM), &out))
	return out
}

func TestSessionConfig(t *testing.T) {
	cfg := SessionConfig(Options{})
	assert.Equal(t, copilot.DefaultModel, cfg.Model)
	assert.True(t, cfg.Streaming)
	assert.Equal(t, SystemPrompt, cfg.SystemMessage.Content)

	var names []string
	for _, tool := range cfg.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"search_knowledge_base", "lookup_account", "create_ticket", "escalate_to_human"}, names)
}

func TestSearchKnowledgeBase_Simulated(t *testing.T) {
	out := decode(t, call(t, Options{}, "search_knowledge_base", map[string]any{"query": "reset password"}))
	assert.EqualValues(t, 1, out["total"])
	results := out["results"].([]any)
	assert.Equal(t, "Password Reset Guide", results[0].(map[string]any)["title"])
}

func TestSearchKnowledgeBase_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "refund policy", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"Refunds"}],"total":1}`))
	}))
	defer srv.Close()

	res := call(t, Options{KBURL: srv.URL + "/"}, "search_knowledge_base", map[string]any{"query": "refund policy"})
	assert.JSONEq(t, `{"results":[{"title":"Refunds"}],"total":1}`, res.TextResultForLLM)
}

func TestSearchKnowledgeBase_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out := decode(t, call(t, Options{KBURL: srv.URL}, "search_knowledge_base", map[string]any{"query": "x"}))
	assert.Equal(t, "Knowledge base error: 502", out["error"])
}

func TestLookupAccount(t *testing.T) {
	out := decode(t, call(t, Options{}, "lookup_account", map[string]any{"email": "jane@example.com"}))
	assert.Equal(t, "cust_12345", out["customer_id"])
	assert.Equal(t, "Jane Smith", out["name"])
	assert.Equal(t, "jane@example.com", out["email"])
	assert.Equal(t, "Pro", out["plan"])

	out = decode(t, call(t, Options{}, "lookup_account", map[string]any{"email": "nobody"}))
	assert.Contains(t, out, "error")
}

func TestCreateTicket(t *testing.T) {
	cases := []struct {
		priority string
		eta      string
	}{
		{"high", "2 hours"},
		{"medium", "24 hours"},
		{"low", "24 hours"},
	}
	for _, tc := range cases {
		t.Run(tc.priority, func(t *testing.T) {
			out := decode(t, call(t, Options{}, "create_ticket", map[string]any{
				"title": "Cannot log in", "description": "2FA loop", "priority": tc.priority, "customer_email": "jane@example.com",
			}))
			assert.Equal(t, "open", out["status"])
			assert.Equal(t, tc.eta, out["estimated_response"])

			id := out["ticket_id"].(string)
			require.True(t, strings.HasPrefix(id, "TKT-"))
			_, err := uuid.Parse(strings.TrimPrefix(id, "TKT-"))
			assert.NoError(t, err)
		})
	}
}

func TestCreateTicket_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		out := decode(t, call(t, Options{}, "create_ticket", map[string]any{
			"title": "t", "description": "d", "priority": "low", "customer_email": "a@b.c",
		}))
		seen[out["ticket_id"].(string)] = true
	}
	assert.Len(t, seen, 100)
}

func TestCreateTicket_InvalidPriority(t *testing.T) {
	out := decode(t, call(t, Options{NewID: func() string { return "fixed" }}, "create_ticket", map[string]any{
		"title": "t", "description": "d", "priority": "critical", "customer_email": "a@b.c",
	}))
	assert.Equal(t, `Invalid priority "critical". Use one of: low, medium, high.`, out["error"])
}

func TestEscalateToHuman(t *testing.T) {
	out := decode(t, call(t, Options{}, "escalate_to_human", map[string]any{"reason": "legal threat", "priority": "urgent"}))
	assert.Equal(t, true, out["escalated"])
	assert.EqualValues(t, 1, out["queue_position"])
	assert.Equal(t, "5 minutes", out["estimated_wait"])

	out = decode(t, call(t, Options{}, "escalate_to_human", map[string]any{"reason": "billing", "ticket_id": "TKT-1"}))
	assert.EqualValues(t, 5, out["queue_position"])
	assert.Equal(t, "30 minutes", out["estimated_wait"])

	out = decode(t, call(t, Options{}, "escalate_to_human", map[string]any{"reason": "x", "priority": "asap"}))
	assert.Contains(t, out["error"], "Invalid priority")
}
