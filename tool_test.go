package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupArgs struct {
	Email string `json:"email" jsonschema:"required,description=Customer email address"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum rows,default=10"`
}

func TestDefineTool_Schema(t *testing.T) {
	tool := DefineTool("lookup_account", "Look up an account", func(context.Context, lookupArgs, ToolInvocation) (string, error) {
		return "", nil
	})

	assert.Equal(t, "lookup_account", tool.Name)
	assert.Equal(t, "object", tool.Parameters["type"])
	assert.Equal(t, []string{"email"}, tool.Parameters["required"])
	props := tool.Parameters["properties"].(map[string]any)
	assert.Contains(t, props, "email")
	assert.Contains(t, props, "limit")
}

func TestDefineTool_ResultShapes(t *testing.T) {
	ctx := context.Background()
	inv := ToolInvocation{ToolName: "t", Arguments: json.RawMessage(`{"email":"jane@example.com"}`)}

	asString := DefineTool("s", "", func(_ context.Context, a lookupArgs, _ ToolInvocation) (string, error) {
		return "hello " + a.Email, nil
	})
	res, err := asString.Handler(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, "hello jane@example.com", res.TextResultForLLM)
	assert.Equal(t, ResultSuccess, res.ResultType)

	asMap := DefineTool("m", "", func(_ context.Context, a lookupArgs, _ ToolInvocation) (map[string]any, error) {
		return map[string]any{"found": true, "email": a.Email}, nil
	})
	res, err = asMap.Handler(ctx, inv)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":true,"email":"jane@example.com"}`, res.TextResultForLLM)

	asResult := DefineTool("r", "", func(context.Context, lookupArgs, ToolInvocation) (ToolResult, error) {
		return ToolResult{TextResultForLLM: "rejected by policy", ResultType: ResultRejected}, nil
	})
	res, err = asResult.Handler(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, res.ResultType)
	assert.NotNil(t, res.ToolTelemetry)

	failing := DefineTool("f", "", func(context.Context, lookupArgs, ToolInvocation) (string, error) {
		return "", errors.New("crm offline")
	})
	_, err = failing.Handler(ctx, inv)
	assert.EqualError(t, err, "crm offline")
}

func TestDefineTool_NullArguments(t *testing.T) {
	tool := DefineTool("n", "", func(_ context.Context, a lookupArgs, _ ToolInvocation) (string, error) {
		return "email=" + a.Email, nil
	})
	for _, raw := range []string{"", "null"} {
		res, err := tool.Handler(context.Background(), ToolInvocation{Arguments: json.RawMessage(raw)})
		require.NoError(t, err)
		assert.Equal(t, "email=", res.TextResultForLLM)
	}
}

func TestToolResultWireShape(t *testing.T) {
	b, err := json.Marshal(failedToolResult(errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"textResultForLlm": "Invoking this tool produced an error. Detailed information is not available.",
		"resultType": "failure",
		"error": "boom",
		"toolTelemetry": {}
	}`, string(b))
}

func TestInvokeTool_RecoversPanic(t *testing.T) {
	tool := Tool{Name: "p", Handler: func(context.Context, ToolInvocation) (ToolResult, error) {
		panic("nil map")
	}}
	_, err := invokeTool(context.Background(), tool, ToolInvocation{})
	assert.ErrorContains(t, err, "nil map")
}

func TestToolRegistry(t *testing.T) {
	noop := func(context.Context, ToolInvocation) (ToolResult, error) { return TextResult("ok"), nil }

	r, err := NewToolRegistry(
		Tool{Name: "search_knowledge_base", Description: "Search help articles", Handler: noop},
		Tool{Name: "create_ticket", Description: "Open a support ticket", Handler: noop},
		Tool{Name: "search_knowledge_base", Description: "Search the KB", Handler: noop},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_knowledge_base", "create_ticket"}, r.Names())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("search_knowledge_base")
	require.True(t, ok)
	assert.Equal(t, "Search the KB", got.Description)

	matches := r.Search("TICKET")
	require.Len(t, matches, 1)
	assert.Equal(t, "create_ticket", matches[0].Name)

	defs := r.definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "search_knowledge_base", defs[0].Name)

	_, err = NewToolRegistry(Tool{Name: "", Handler: noop})
	assert.ErrorIs(t, err, ErrInvalidTool)
	_, err = NewToolRegistry(Tool{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidTool)
}
