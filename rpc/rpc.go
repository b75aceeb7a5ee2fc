// Package rpc holds the typed request/response pairs of the Copilot CLI
// method surface and thin accessors that route them through one generic call.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/armatrix/copilot-sdk-go/internal/jsonrpc"
)

// Caller issues a single JSON-RPC request. *jsonrpc.Conn satisfies it.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// Error is the JSON-RPC error object returned by the CLI.
type Error = jsonrpc.Error

// invoke is the only path from a typed method to the wire.
func invoke[R any](ctx context.Context, c Caller, method string, params any) (*R, error) {
	var out R
	if err := c.Call(ctx, method, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// invokeSession threads sessionID into params before calling invoke.
func invokeSession[R any](ctx context.Context, c Caller, sessionID, method string, params any) (*R, error) {
	req, err := scoped(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return invoke[R](ctx, c, method, req)
}

func scoped(sessionID string, params any) (map[string]any, error) {
	req := map[string]any{}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &req); err != nil {
			return nil, err
		}
	}
	if req == nil {
		req = map[string]any{}
	}
	req["sessionId"] = sessionID
	return req, nil
}
