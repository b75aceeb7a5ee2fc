package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/armatrix/copilot-sdk-go/hook"
	"github.com/armatrix/copilot-sdk-go/internal/hookrunner"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/permission"
	"github.com/armatrix/copilot-sdk-go/rpc"
)

// SessionEventHandler receives session events. Handlers of one session are
// called sequentially in arrival order.
type SessionEventHandler func(event SessionEvent)

type handlerEntry struct {
	id uint64
	fn SessionEventHandler
}

// Session is one conversation hosted by the CLI.
type Session struct {
	ID            string
	WorkspacePath string
	RPC           *rpc.SessionRpc

	caller       rpc.Caller
	release      func(s *Session)
	log          *logging.Logger
	tools        *ToolRegistry
	onPermission PermissionHandlerFunc
	hooks        *hookrunner.Runner

	mu          sync.Mutex
	handlers    []handlerEntry
	nextHandler uint64
	queue       []SessionEvent
	closeErr    error

	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type sessionParams struct {
	id, workspacePath string
	caller            rpc.Caller
	release           func(s *Session)
	log               *logging.Logger
	tools             *ToolRegistry
	onPermission      PermissionHandlerFunc
	hooks             *hookrunner.Runner
	onEvent           SessionEventHandler
}

func newSession(p sessionParams) *Session {
	s := &Session{
		ID:            p.id,
		WorkspacePath: p.workspacePath,
		RPC:           rpc.NewSessionRpc(p.caller, p.id),
		caller:        p.caller,
		release:       p.release,
		log:           p.log.With("session", p.id),
		tools:         p.tools,
		onPermission:  p.onPermission,
		hooks:         p.hooks,
		signal:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	if p.onEvent != nil {
		s.On(p.onEvent)
	}
	go s.dispatch()
	return s
}

// On subscribes handler to the session's events and returns a function that
// unsubscribes it.
func (s *Session) On(handler SessionEventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandler++
	id := s.nextHandler
	s.handlers = append(s.handlers, handlerEntry{id: id, fn: handler})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Send submits a prompt and returns the message ID. Events for the turn
// arrive through On.
func (s *Session) Send(ctx context.Context, opts MessageOptions) (string, error) {
	if err := s.err(); err != nil {
		return "", err
	}
	res, err := s.hooks.RunUserPromptSubmit(ctx, s.ID, opts.Prompt)
	if err != nil {
		return "", fmt.Errorf("user prompt hook: %w", err)
	}
	if res != nil && res.Block {
		return "", fmt.Errorf("%w: %s", ErrPromptBlocked, res.Reason)
	}

	var out sendResponse
	err = s.caller.Call(ctx, "session.send", sendRequest{
		SessionID:   s.ID,
		Prompt:      opts.Prompt,
		Attachments: opts.Attachments,
		Mode:        opts.Mode,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("session.send: %w", err)
	}
	return out.MessageID, nil
}

// SendAndWait sends a prompt and blocks until the session goes idle. It
// returns the last assistant.message of the turn, which is nil when the
// assistant produced no message. A session.error event is returned as an
// error wrapping ErrSessionError.
func (s *Session) SendAndWait(ctx context.Context, opts MessageOptions) (*SessionEvent, error) {
	type outcome struct {
		ev  *SessionEvent
		err error
	}
	// The first terminal event decides the turn; later ones are dropped.
	result := make(chan outcome, 1)
	var last *SessionEvent

	unsubscribe := s.On(func(ev SessionEvent) {
		switch ev.Type {
		case AssistantMessage:
			e := ev
			last = &e
		case SessionIdle:
			select {
			case result <- outcome{ev: last}:
			default:
			}
		case SessionErrorEvent:
			select {
			case result <- outcome{err: fmt.Errorf("%w: %s", ErrSessionError, ev.Data.Message)}:
			default:
			}
		}
	})
	defer unsubscribe()

	if _, err := s.Send(ctx, opts); err != nil {
		return nil, err
	}
	select {
	case out := <-result:
		return out.ev, out.err
	case <-s.done:
		return nil, s.err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream sends a prompt and returns an iterator over the turn's events,
// ending after session.idle. A session.error ends the stream with an error.
func (s *Session) Stream(ctx context.Context, opts MessageOptions) *EventStream {
	st := newEventStream()
	unsubscribe := s.On(func(ev SessionEvent) {
		select {
		case st.events <- ev:
		case <-st.fin:
			return
		}
		switch ev.Type {
		case SessionIdle:
			st.finish(nil)
		case SessionErrorEvent:
			st.finish(fmt.Errorf("%w: %s", ErrSessionError, ev.Data.Message))
		}
	})
	st.setOnFinish(unsubscribe)

	go func() {
		select {
		case <-ctx.Done():
			st.finish(ctx.Err())
		case <-s.done:
			st.finish(s.err())
		case <-st.fin:
		}
	}()

	if _, err := s.Send(ctx, opts); err != nil {
		st.finish(err)
	}
	return st
}

// Abort cancels the turn in progress.
func (s *Session) Abort(ctx context.Context) error {
	if err := s.err(); err != nil {
		return err
	}
	if err := s.caller.Call(ctx, "session.abort", map[string]string{"sessionId": s.ID}, nil); err != nil {
		return fmt.Errorf("session.abort: %w", err)
	}
	return nil
}

// GetMessages returns the session's event log.
func (s *Session) GetMessages(ctx context.Context) ([]SessionEvent, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	var out struct {
		Events []SessionEvent `json:"events"`
	}
	if err := s.caller.Call(ctx, "session.getMessages", map[string]string{"sessionId": s.ID}, &out); err != nil {
		return nil, fmt.Errorf("session.getMessages: %w", err)
	}
	return out.Events, nil
}

// Destroy releases the session in the CLI. The session can still be resumed
// by ID until it is deleted. Destroying twice is a no-op.
func (s *Session) Destroy(ctx context.Context) error {
	if s.err() != nil {
		return nil
	}
	err := s.caller.Call(ctx, "session.destroy", map[string]string{"sessionId": s.ID}, nil)
	if hookErr := s.hooks.RunSessionEnd(ctx, s.ID); hookErr != nil {
		s.log.Warn().Err(hookErr).Msg("session end hook failed")
	}
	s.close(fmt.Errorf("%w: %s destroyed", ErrSessionNotFound, s.ID))
	if err != nil {
		return fmt.Errorf("session.destroy: %w", err)
	}
	return nil
}

// Tools returns the names of the client-side tools registered on the session.
func (s *Session) Tools() []string {
	return s.tools.Names()
}

// close stops event dispatch and detaches the session from its client.
func (s *Session) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closeErr = reason
		s.mu.Unlock()
		close(s.done)
		if s.release != nil {
			s.release(s)
		}
	})
}

func (s *Session) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// deliver queues ev for the dispatcher without blocking the caller.
func (s *Session) deliver(ev SessionEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				s.emit(ev)
			}
		}
	}
}

func (s *Session) emit(ev SessionEvent) {
	s.mu.Lock()
	handlers := make([]handlerEntry, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.log.Error().Interface("panic", p).Str("event", string(ev.Type)).Msg("event handler panicked")
				}
			}()
			h.fn(ev)
		}()
	}
}

// handleToolCall runs one tool.call for this session, with hooks.
func (s *Session) handleToolCall(ctx context.Context, inv ToolInvocation) ToolResult {
	tool, ok := s.tools.Get(inv.ToolName)
	if !ok {
		s.log.Warn().Str("tool", inv.ToolName).Msg("unsupported tool")
		return unsupportedToolResult(inv.ToolName)
	}
	ctx = WithContextToolCallID(WithContextSessionID(ctx, s.ID), inv.ToolCallID)

	pre, err := s.hooks.RunPreToolUse(ctx, s.ID, inv.ToolName, inv.ToolCallID, inv.Arguments)
	if err != nil {
		return failedToolResult(fmt.Errorf("pre tool use hook: %w", err))
	}
	if pre != nil {
		if pre.Block {
			reason := pre.Reason
			if reason == "" {
				reason = "blocked by hook"
			}
			return ToolResult{TextResultForLLM: "Tool call denied: " + reason, ResultType: ResultDenied, ToolTelemetry: map[string]any{}}
		}
		if len(pre.UpdatedInput) > 0 {
			inv.Arguments = pre.UpdatedInput
		}
	}

	s.log.Debug().Str("tool", inv.ToolName).Str("tool_call_id", inv.ToolCallID).Msg("tool call")
	res, err := invokeTool(ctx, tool, inv)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", inv.ToolName).Msg("tool failed")
		if hookErr := s.hooks.RunPostToolFailure(ctx, s.ID, inv.ToolName, inv.ToolCallID, inv.Arguments, err); hookErr != nil {
			s.log.Warn().Err(hookErr).Msg("post tool failure hook failed")
		}
		return failedToolResult(err)
	}
	res = res.normalized()
	if hookErr := s.hooks.RunPostToolUse(ctx, s.ID, inv.ToolName, inv.ToolCallID, inv.Arguments, res.TextResultForLLM); hookErr != nil {
		s.log.Warn().Err(hookErr).Msg("post tool use hook failed")
	}
	return res
}

// handlePermission answers one permission.request for this session.
func (s *Session) handlePermission(ctx context.Context, req PermissionRequest, raw json.RawMessage) PermissionResult {
	ctx = WithContextSessionID(ctx, s.ID)
	res, err := s.hooks.RunPermissionRequest(ctx, s.ID, string(req.Kind), raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("permission hook failed")
	} else if res != nil {
		switch res.Decision {
		case hook.DecisionAllow:
			return PermissionResult{Kind: permission.Approved}
		case hook.DecisionDeny:
			return PermissionResult{Kind: permission.DeniedByRules}
		}
	}

	if s.onPermission == nil {
		return PermissionResult{Kind: permission.DeniedNoApprovalRuleOrUser}
	}
	result, err := s.callPermissionHandler(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(req.Kind)).Msg("permission handler failed")
		return PermissionResult{Kind: permission.DeniedNoApprovalRuleOrUser}
	}
	return result
}

func (s *Session) callPermissionHandler(ctx context.Context, req PermissionRequest) (res PermissionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("permission handler panicked: %v", p)
		}
	}()
	return s.onPermission(ctx, req, PermissionInvocation{SessionID: s.ID})
}
