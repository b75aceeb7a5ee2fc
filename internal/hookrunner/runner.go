// Package hookrunner executes hook matchers for a session.
package hookrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	pubhook "github.com/armatrix/copilot-sdk-go/hook"
)

const defaultTimeout = 30 * time.Second

// Runner executes hooks matched by event and tool name. A nil *Runner runs nothing.
type Runner struct {
	matchers []matcherEntry
}

type matcherEntry struct {
	event   pubhook.Event
	pattern *regexp.Regexp // nil = match all tools
	hooks   []pubhook.Func
	timeout time.Duration
}

// New creates a Runner from public Matcher definitions.
// Returns an error if any regex pattern is invalid.
func New(matchers []pubhook.Matcher) (*Runner, error) {
	entries := make([]matcherEntry, 0, len(matchers))
	for i, m := range matchers {
		entry := matcherEntry{
			event:   m.Event,
			hooks:   m.Hooks,
			timeout: m.Timeout,
		}
		if entry.timeout == 0 {
			entry.timeout = defaultTimeout
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, fmt.Errorf("matcher[%d]: invalid pattern %q: %w", i, m.Pattern, err)
			}
			entry.pattern = re
		}
		entries = append(entries, entry)
	}
	return &Runner{matchers: entries}, nil
}

// RunPreToolUse runs matching PreToolUse hooks. First block wins; the last
// non-nil UpdatedInput wins.
func (r *Runner) RunPreToolUse(ctx context.Context, sessionID, toolName, toolCallID string, input json.RawMessage) (*pubhook.Result, error) {
	return r.run(ctx, toolName, &pubhook.Input{
		SessionID:  sessionID,
		Event:      pubhook.PreToolUse,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		ToolInput:  input,
	})
}

// RunPostToolUse runs matching PostToolUse hooks.
func (r *Runner) RunPostToolUse(ctx context.Context, sessionID, toolName, toolCallID string, input json.RawMessage, output string) error {
	_, err := r.run(ctx, toolName, &pubhook.Input{
		SessionID:  sessionID,
		Event:      pubhook.PostToolUse,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		ToolInput:  input,
		ToolOutput: output,
	})
	return err
}

// RunPostToolFailure runs matching PostToolUseFailure hooks.
func (r *Runner) RunPostToolFailure(ctx context.Context, sessionID, toolName, toolCallID string, input json.RawMessage, toolErr error) error {
	_, err := r.run(ctx, toolName, &pubhook.Input{
		SessionID:  sessionID,
		Event:      pubhook.PostToolUseFailure,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		ToolInput:  input,
		ToolError:  toolErr,
	})
	return err
}

// RunUserPromptSubmit runs matching UserPromptSubmit hooks. A block stops the send.
func (r *Runner) RunUserPromptSubmit(ctx context.Context, sessionID, prompt string) (*pubhook.Result, error) {
	return r.run(ctx, "", &pubhook.Input{
		SessionID: sessionID,
		Event:     pubhook.UserPromptSubmit,
		Prompt:    prompt,
	})
}

// RunPermissionRequest runs matching PermissionRequest hooks. kind is matched
// against the pattern in place of a tool name.
func (r *Runner) RunPermissionRequest(ctx context.Context, sessionID, kind string, request json.RawMessage) (*pubhook.Result, error) {
	return r.run(ctx, kind, &pubhook.Input{
		SessionID: sessionID,
		Event:     pubhook.PermissionRequest,
		ToolName:  kind,
		ToolInput: request,
	})
}

// RunSessionStart runs matching SessionStart hooks.
func (r *Runner) RunSessionStart(ctx context.Context, sessionID string, resumed bool) error {
	_, err := r.run(ctx, "", &pubhook.Input{
		SessionID: sessionID,
		Event:     pubhook.SessionStart,
		Resumed:   resumed,
	})
	return err
}

// RunSessionEnd runs matching SessionEnd hooks.
func (r *Runner) RunSessionEnd(ctx context.Context, sessionID string) error {
	_, err := r.run(ctx, "", &pubhook.Input{
		SessionID: sessionID,
		Event:     pubhook.SessionEnd,
	})
	return err
}

func (r *Runner) run(ctx context.Context, toolName string, input *pubhook.Input) (*pubhook.Result, error) {
	if r == nil {
		return nil, nil
	}
	var combined *pubhook.Result

	for _, entry := range r.matchers {
		if entry.event != input.Event {
			continue
		}
		if entry.pattern != nil && !entry.pattern.MatchString(toolName) {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, entry.timeout)
		res, err := runHooks(tctx, entry.hooks, input)
		cancel()

		if err != nil {
			return combined, err
		}
		if res == nil {
			continue
		}
		combined = merge(combined, res)
		if combined.Block {
			break
		}
	}

	return combined, nil
}

// runHooks executes hook functions in order, stopping early on a block or
// a cancelled context.
func runHooks(ctx context.Context, hooks []pubhook.Func, input *pubhook.Input) (*pubhook.Result, error) {
	var combined *pubhook.Result

	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return combined, err
		}

		res, err := fn(ctx, input)
		if err != nil {
			return combined, err
		}
		if res == nil {
			continue
		}
		combined = merge(combined, res)
		if combined.Block {
			return combined, nil
		}
	}

	return combined, nil
}

func merge(dst, src *pubhook.Result) *pubhook.Result {
	if dst == nil {
		dst = &pubhook.Result{}
	}
	if src.Block && !dst.Block {
		dst.Block = true
		dst.Reason = src.Reason
	}
	if src.UpdatedInput != nil {
		dst.UpdatedInput = src.UpdatedInput
	}
	if src.Decision != "" {
		dst.Decision = src.Decision
	}
	return dst
}
