package rpc

import (
	"github.com/shopspring/decimal"
)

// Agent is a custom agent known to a session.
type Agent struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// Model describes a model available to the authenticated user.
type Model struct {
	ID                        string            `json:"id"`
	Name                      string            `json:"name"`
	Capabilities              ModelCapabilities `json:"capabilities"`
	Policy                    *ModelPolicy      `json:"policy,omitempty"`
	Billing                   *ModelBilling     `json:"billing,omitempty"`
	SupportedReasoningEfforts []string          `json:"supportedReasoningEfforts,omitempty"`
	DefaultReasoningEffort    string            `json:"defaultReasoningEffort,omitempty"`
}

type ModelCapabilities struct {
	Supports ModelSupports `json:"supports"`
	Limits   ModelLimits   `json:"limits"`
}

type ModelSupports struct {
	Vision          bool `json:"vision"`
	ReasoningEffort bool `json:"reasoningEffort"`
}

type ModelLimits struct {
	MaxPromptTokens        int `json:"max_prompt_tokens,omitempty"`
	MaxContextWindowTokens int `json:"max_context_window_tokens"`
}

type ModelPolicy struct {
	State string `json:"state"`
	Terms string `json:"terms"`
}

// ModelBilling carries the premium request multiplier for a model.
type ModelBilling struct {
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Tool is a built-in tool exposed by the CLI.
type Tool struct {
	Name           string         `json:"name"`
	NamespacedName string         `json:"namespacedName,omitempty"`
	Description    string         `json:"description"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Instructions   string         `json:"instructions,omitempty"`
}

// QuotaSnapshot is the usage state of one quota bucket.
type QuotaSnapshot struct {
	EntitlementRequests              decimal.Decimal `json:"entitlementRequests"`
	UsedRequests                     decimal.Decimal `json:"usedRequests"`
	RemainingPercentage              decimal.Decimal `json:"remainingPercentage"`
	Overage                          decimal.Decimal `json:"overage"`
	OverageAllowedWithExhaustedQuota bool            `json:"overageAllowedWithExhaustedQuota"`
	ResetDate                        string          `json:"resetDate,omitempty"`
}

// Mode is the session interaction mode.
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModePlan        Mode = "plan"
	ModeAutopilot   Mode = "autopilot"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeInteractive, ModePlan, ModeAutopilot:
		return true
	}
	return false
}

// --- Server-scoped methods ---

type PingParams struct {
	Message string `json:"message,omitempty"`
}

type PingResult struct {
	Message         string `json:"message"`
	Timestamp       int64  `json:"timestamp"`
	ProtocolVersion *int   `json:"protocolVersion,omitempty"`
}

type ModelsListResult struct {
	Models []Model `json:"models"`
}

type ToolsListParams struct {
	Model string `json:"model,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type AccountGetQuotaResult struct {
	QuotaSnapshots map[string]QuotaSnapshot `json:"quotaSnapshots"`
}

// --- Session-scoped methods ---

type SessionModelGetCurrentResult struct {
	ModelID string `json:"modelId,omitempty"`
}

type SessionModelSwitchToParams struct {
	ModelID string `json:"modelId"`
}

type SessionModelSwitchToResult struct {
	ModelID string `json:"modelId,omitempty"`
}

type SessionModeGetResult struct {
	Mode Mode `json:"mode"`
}

type SessionModeSetParams struct {
	Mode Mode `json:"mode"`
}

type SessionModeSetResult struct {
	Mode Mode `json:"mode"`
}

type SessionPlanReadResult struct {
	Exists  bool    `json:"exists"`
	Content *string `json:"content"`
}

type SessionPlanUpdateParams struct {
	Content string `json:"content"`
}

type SessionPlanUpdateResult struct{}

type SessionPlanDeleteResult struct{}

type SessionWorkspaceListFilesResult struct {
	Files []string `json:"files"`
}

type SessionWorkspaceReadFileParams struct {
	Path string `json:"path"`
}

type SessionWorkspaceReadFileResult struct {
	Content string `json:"content"`
}

type SessionWorkspaceCreateFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type SessionWorkspaceCreateFileResult struct{}

type SessionFleetStartParams struct {
	Prompt string `json:"prompt,omitempty"`
}

type SessionFleetStartResult struct {
	Started bool `json:"started"`
}

type SessionAgentListResult struct {
	Agents []Agent `json:"agents"`
}

// SessionAgentGetCurrentResult holds the selected agent, nil when none is selected.
type SessionAgentGetCurrentResult struct {
	Agent *Agent `json:"agent"`
}

type SessionAgentSelectParams struct {
	Name string `json:"name"`
}

type SessionAgentSelectResult struct {
	Agent Agent `json:"agent"`
}

type SessionAgentDeselectResult struct{}

type SessionCompactionCompactResult struct {
	Success         bool `json:"success"`
	TokensRemoved   int  `json:"tokensRemoved"`
	MessagesRemoved int  `json:"messagesRemoved"`
}
