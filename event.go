package copilot

import (
	"encoding/json"
	"time"
)

// SessionEventType identifies the kind of event pushed by the CLI.
type SessionEventType string

const (
	SessionStart              SessionEventType = "session.start"
	SessionResume             SessionEventType = "session.resume"
	SessionIdle               SessionEventType = "session.idle"
	SessionErrorEvent         SessionEventType = "session.error"
	SessionInfo               SessionEventType = "session.info"
	SessionModelChange        SessionEventType = "session.model_change"
	SessionCompactionStart    SessionEventType = "session.compaction_start"
	SessionCompactionComplete SessionEventType = "session.compaction_complete"
	UserMessage               SessionEventType = "user.message"
	AssistantTurnStart        SessionEventType = "assistant.turn_start"
	AssistantIntent           SessionEventType = "assistant.intent"
	AssistantReasoning        SessionEventType = "assistant.reasoning"
	AssistantReasoningDelta   SessionEventType = "assistant.reasoning_delta"
	AssistantMessage          SessionEventType = "assistant.message"
	AssistantMessageDelta     SessionEventType = "assistant.message_delta"
	AssistantTurnEnd          SessionEventType = "assistant.turn_end"
	AssistantUsage            SessionEventType = "assistant.usage"
	ToolExecutionStart        SessionEventType = "tool.execution_start"
	ToolExecutionProgress     SessionEventType = "tool.execution_progress"
	ToolExecutionComplete     SessionEventType = "tool.execution_complete"
	SubagentSelected          SessionEventType = "subagent.selected"
	Abort                     SessionEventType = "abort"
)

// SessionEvent is one entry of a session's event log.
type SessionEvent struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	ParentID  *string          `json:"parentId"`
	Ephemeral bool             `json:"ephemeral,omitempty"`
	Type      SessionEventType `json:"type"`
	Data      EventData        `json:"data"`

	// Raw is the event exactly as received.
	Raw json.RawMessage `json:"-"`
}

// EventData holds the union of fields carried by the event types. Fields
// not used by an event type are left zero.
type EventData struct {
	Content      string `json:"content,omitempty"`
	DeltaContent string `json:"deltaContent,omitempty"`
	MessageID    string `json:"messageId,omitempty"`

	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Success    *bool           `json:"success,omitempty"`

	ErrorType string `json:"errorType,omitempty"`
	Message   string `json:"message,omitempty"`
	Stack     string `json:"stack,omitempty"`

	Model        string   `json:"model,omitempty"`
	InputTokens  *float64 `json:"inputTokens,omitempty"`
	OutputTokens *float64 `json:"outputTokens,omitempty"`

	AgentName        string `json:"agentName,omitempty"`
	AgentDisplayName string `json:"agentDisplayName,omitempty"`
}

// UnmarshalJSON decodes the event and keeps a copy of the raw payload.
func (e *SessionEvent) UnmarshalJSON(data []byte) error {
	type plain SessionEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = SessionEvent(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Text returns the message content, or the delta for streaming events.
func (e SessionEvent) Text() string {
	if e.Data.Content != "" {
		return e.Data.Content
	}
	return e.Data.DeltaContent
}

// Terminal reports whether the event ends a turn.
func (e SessionEvent) Terminal() bool {
	return e.Type == SessionIdle || e.Type == SessionErrorEvent
}
