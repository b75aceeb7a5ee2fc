// Package hook defines callbacks that run around locally executed tools and
// at session boundaries.
//
// The [Matcher] type binds a set of [Func] callbacks to a specific [Event]
// and an optional tool-name regex pattern. Hooks observe and may veto work
// done by this process; they never see the CLI's own built-in tools.
package hook

import (
	"context"
	"encoding/json"
	"time"
)

// Event identifies when a hook fires.
type Event string

const (
	PreToolUse         Event = "PreToolUse"
	PostToolUse        Event = "PostToolUse"
	PostToolUseFailure Event = "PostToolUseFailure"
	UserPromptSubmit   Event = "UserPromptSubmit"
	PermissionRequest  Event = "PermissionRequest"
	SessionStart       Event = "SessionStart"
	SessionEnd         Event = "SessionEnd"
)

// Input is passed to hook functions.
type Input struct {
	SessionID string
	Event     Event

	// Tool events. PermissionRequest reuses ToolName for the request kind.
	ToolName   string
	ToolCallID string
	ToolInput  json.RawMessage
	ToolOutput string // PostToolUse.
	ToolError  error  // PostToolUseFailure.

	Prompt string // UserPromptSubmit.

	// Resumed is set on SessionStart when an existing session was resumed.
	Resumed bool
}

// Decision values for PermissionRequest hooks.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Result is returned by hook functions. A zero value means "no action".
type Result struct {
	Block        bool            // Blocks the tool call or prompt.
	Reason       string          // Human-readable reason for blocking.
	UpdatedInput json.RawMessage // Replaces the tool arguments (PreToolUse only).
	Decision     string          // DecisionAllow or DecisionDeny for PermissionRequest.
}

// Func is the signature for hook callbacks.
type Func func(ctx context.Context, input *Input) (*Result, error)

// Matcher defines which events a set of hooks should fire for.
type Matcher struct {
	Event   Event         // Which event to match.
	Pattern string        // Regex pattern for tool name (empty = match all).
	Hooks   []Func        // Functions to call (in order).
	Timeout time.Duration // Max time for all hooks in this matcher (0 = 30s default).
}
