package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/armatrix/copilot-sdk-go/internal/schema"
)

// Tool result types understood by the CLI.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultDenied   = "denied"
)

// genericToolError is the text the model sees when a handler fails.
const genericToolError = "Invoking this tool produced an error. Detailed information is not available."

// ToolInvocation describes one tool.call request.
type ToolInvocation struct {
	SessionID  string
	ToolCallID string
	ToolName   string
	Arguments  json.RawMessage
}

// ToolResult is the output of a tool execution as sent back to the CLI.
type ToolResult struct {
	TextResultForLLM string         `json:"textResultForLlm"`
	ResultType       string         `json:"resultType"`
	Error            string         `json:"error,omitempty"`
	SessionLog       string         `json:"sessionLog,omitempty"`
	ToolTelemetry    map[string]any `json:"toolTelemetry"`
}

// TextResult is a convenience constructor for a successful text result.
func TextResult(text string) ToolResult {
	return ToolResult{TextResultForLLM: text, ResultType: ResultSuccess, ToolTelemetry: map[string]any{}}
}

// ErrorResult is a convenience constructor for a failed result the model
// can read.
func ErrorResult(text string) ToolResult {
	return ToolResult{TextResultForLLM: text, ResultType: ResultFailure, Error: text, ToolTelemetry: map[string]any{}}
}

// unsupportedToolResult answers calls for tools this client never registered.
func unsupportedToolResult(name string) ToolResult {
	return ToolResult{
		TextResultForLLM: fmt.Sprintf("Tool '%s' is not supported by this client instance.", name),
		ResultType:       ResultFailure,
		Error:            fmt.Sprintf("tool '%s' not supported", name),
		ToolTelemetry:    map[string]any{},
	}
}

// failedToolResult hides err from the model but reports it to the CLI.
func failedToolResult(err error) ToolResult {
	return ToolResult{
		TextResultForLLM: genericToolError,
		ResultType:       ResultFailure,
		Error:            err.Error(),
		ToolTelemetry:    map[string]any{},
	}
}

func (r ToolResult) normalized() ToolResult {
	if r.ResultType == "" {
		r.ResultType = ResultSuccess
	}
	if r.ToolTelemetry == nil {
		r.ToolTelemetry = map[string]any{}
	}
	return r
}

// ToolHandler executes a tool call.
type ToolHandler func(ctx context.Context, inv ToolInvocation) (ToolResult, error)

// Tool is a client-side tool exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     ToolHandler
}

func (t Tool) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTool)
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidTool, t.Name)
	}
	return nil
}

// DefineTool builds a Tool whose arguments decode into T. The parameter
// schema is generated from T's json and jsonschema struct tags. The value
// returned by fn is sent to the model as JSON, except that a string is sent
// verbatim and a ToolResult is passed through.
func DefineTool[T, R any](name, description string, fn func(ctx context.Context, args T, inv ToolInvocation) (R, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema.Generate[T](),
		Handler: func(ctx context.Context, inv ToolInvocation) (ToolResult, error) {
			var args T
			if len(inv.Arguments) > 0 && string(inv.Arguments) != "null" {
				if err := json.Unmarshal(inv.Arguments, &args); err != nil {
					return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
				}
			}
			out, err := fn(ctx, args, inv)
			if err != nil {
				return ToolResult{}, err
			}
			return toToolResult(out)
		},
	}
}

func toToolResult(v any) (ToolResult, error) {
	switch out := v.(type) {
	case ToolResult:
		return out.normalized(), nil
	case *ToolResult:
		if out == nil {
			return TextResult(""), nil
		}
		return out.normalized(), nil
	case string:
		return TextResult(out), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return TextResult(string(b)), nil
}

// ToolRegistry holds tools by name in registration order. It is
// concurrent-safe.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewToolRegistry creates a registry holding tools. Later duplicates replace
// earlier ones.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(t Tool) error {
	if err := t.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// definitions returns the wire form of the registered tools.
func (r *ToolRegistry) definitions() []toolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil
	}
	defs := make([]toolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, toolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return defs
}

// ToolSearchMatch represents a tool found by search.
type ToolSearchMatch struct {
	Name        string
	Description string
}

// Search finds tools whose name or description contains the query (case-insensitive).
func (r *ToolRegistry) Search(query string) []ToolSearchMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var matches []ToolSearchMatch
	for _, name := range r.order {
		t := r.tools[name]
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			matches = append(matches, ToolSearchMatch{Name: t.Name, Description: t.Description})
		}
	}
	return matches
}

// invokeTool runs t's handler, converting a panic into an error.
func invokeTool(ctx context.Context, t Tool, inv ToolInvocation) (res ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name, p)
		}
	}()
	return t.Handler(ctx, inv)
}
