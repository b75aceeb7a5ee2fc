// Package permission models the CLI's permission requests and provides a
// rule-based checker that answers them.
package permission

import (
	"context"
	"encoding/json"

	"github.com/armatrix/copilot-sdk-go/mcp"
)

// Kind is the category of operation the CLI is asking to perform.
type Kind string

const (
	KindShell Kind = "shell"
	KindWrite Kind = "write"
	KindRead  Kind = "read"
	KindURL   Kind = "url"
	KindMCP   Kind = "mcp"
)

// Request is a permission request sent by the CLI. Unknown fields are kept
// in Extra.
type Request struct {
	Kind       Kind   `json:"kind"`
	ToolCallID string `json:"toolCallId,omitempty"`
	Intention  string `json:"intention,omitempty"`

	FullCommandText string `json:"fullCommandText,omitempty"` // shell
	FileName        string `json:"fileName,omitempty"`        // write
	Path            string `json:"path,omitempty"`            // read
	URL             string `json:"url,omitempty"`             // url
	ServerName      string `json:"serverName,omitempty"`      // mcp
	ToolName        string `json:"toolName,omitempty"`        // mcp
	ReadOnly        bool   `json:"readOnly,omitempty"`        // mcp

	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the full payload in Extra.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	*r = Request(p)
	r.Extra = extra
	return nil
}

// Subject returns the string rules are matched against: the command, file,
// path or URL for the request kind, or "server/tool" for MCP calls.
func (r Request) Subject() string {
	switch r.Kind {
	case KindShell:
		return r.FullCommandText
	case KindWrite:
		return r.FileName
	case KindRead:
		return r.Path
	case KindURL:
		return r.URL
	case KindMCP:
		return mcp.NamespacedName(r.ServerName, r.ToolName)
	}
	return ""
}

// ResultKind is the CLI's vocabulary for a permission answer.
type ResultKind string

const (
	Approved                   ResultKind = "approved"
	DeniedByRules              ResultKind = "denied-by-rules"
	DeniedInteractivelyByUser  ResultKind = "denied-interactively-by-user"
	DeniedNoApprovalRuleOrUser ResultKind = "denied-no-approval-rule-and-could-not-request-from-user"
)

// Result answers a Request.
type Result struct {
	Kind  ResultKind `json:"kind"`
	Rules []any      `json:"rules,omitempty"`
}

// Decision is the outcome of evaluating a request locally.
type Decision int

const (
	Allow Decision = iota // Approve without asking
	Deny                  // Refuse
	Ask                   // Defer to the Prompter
)

// Mode controls the default permission behavior when no rule matches.
type Mode int

const (
	ModeDefault    Mode = iota // read=allow, everything else=ask
	ModeReadOnly               // read=allow, everything else=deny
	ModeApproveAll             // all=allow
)

// Func is a user-provided permission callback. It overrides mode and rules.
type Func func(ctx context.Context, req Request) (Decision, error)

// Prompter asks a human to approve an Ask decision.
type Prompter func(ctx context.Context, req Request) (bool, error)

// Checker evaluates permission requests against rules and a mode.
type Checker struct {
	mode     Mode
	rules    []Rule
	canUse   Func
	prompter Prompter
}

// NewChecker creates a permission checker with the given mode and rules.
func NewChecker(mode Mode, rules ...Rule) *Checker {
	return &Checker{mode: mode, rules: rules}
}

// WithFunc installs a callback that replaces mode and rule evaluation.
func (c *Checker) WithFunc(fn Func) *Checker {
	c.canUse = fn
	return c
}

// WithPrompter installs the function consulted for Ask decisions.
func (c *Checker) WithPrompter(p Prompter) *Checker {
	c.prompter = p
	return c
}

// Check evaluates req. Rules are consulted before the mode default.
func (c *Checker) Check(ctx context.Context, req Request) (Decision, error) {
	if c.canUse != nil {
		return c.canUse(ctx, req)
	}
	if d, ok := MatchRules(c.rules, req); ok {
		return d, nil
	}

	switch c.mode {
	case ModeApproveAll:
		return Allow, nil
	case ModeReadOnly:
		if isReadOnly(req) {
			return Allow, nil
		}
		return Deny, nil
	default:
		if isReadOnly(req) {
			return Allow, nil
		}
		return Ask, nil
	}
}

// Handle evaluates req and converts the decision into a Result, prompting
// for Ask decisions when a Prompter is installed.
func (c *Checker) Handle(ctx context.Context, req Request) (Result, error) {
	d, err := c.Check(ctx, req)
	if err != nil {
		return Result{Kind: DeniedNoApprovalRuleOrUser}, err
	}
	switch d {
	case Allow:
		return Result{Kind: Approved}, nil
	case Deny:
		return Result{Kind: DeniedByRules}, nil
	}
	if c.prompter == nil {
		return Result{Kind: DeniedNoApprovalRuleOrUser}, nil
	}
	ok, err := c.prompter(ctx, req)
	if err != nil {
		return Result{Kind: DeniedNoApprovalRuleOrUser}, err
	}
	if ok {
		return Result{Kind: Approved}, nil
	}
	return Result{Kind: DeniedInteractivelyByUser}, nil
}

// Mode returns the current permission mode.
func (c *Checker) Mode() Mode {
	return c.mode
}

// SetMode updates the permission mode.
func (c *Checker) SetMode(mode Mode) {
	c.mode = mode
}

func isReadOnly(req Request) bool {
	switch req.Kind {
	case KindRead:
		return true
	case KindMCP:
		return req.ReadOnly
	}
	return false
}
