// Package review is a code review agent for GitHub pull requests.
package review

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// SystemPrompt instructs the model how to review and what to return.
const SystemPrompt = "You are a senior software engineer conducting a thorough code review. " +
	"Identify security vulnerabilities, logic errors, and performance anti-patterns. " +
	"Be constructive and specific. Reference file paths and line numbers. " +
	"Return your findings as JSON: " +
	"{ summary, approved, findings: [{ severity, file, line, message, suggestion }] }"

// Options configures the review tools.
type Options struct {
	// Token authenticates GitHub calls. Defaults to GITHUB_TOKEN, then GH_TOKEN.
	Token string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient is the base transport; the token is layered on top.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// OptionsFromEnv reads GITHUB_TOKEN or GH_TOKEN.
func OptionsFromEnv() Options {
	return Options{Token: tokenFromEnv()}
}

func tokenFromEnv() string {
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GH_TOKEN")
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// Target identifies the pull request under review.
type Target struct {
	Owner    string
	Repo     string
	PRNumber int
}

// TargetFromEnv reads REVIEW_OWNER, REVIEW_REPO and REVIEW_PR_NUMBER,
// defaulting to owner/repo#1.
func TargetFromEnv() (Target, error) {
	t := Target{Owner: os.Getenv("REVIEW_OWNER"), Repo: os.Getenv("REVIEW_REPO"), PRNumber: 1}
	if t.Owner == "" {
		t.Owner = "owner"
	}
	if t.Repo == "" {
		t.Repo = "repo"
	}
	if v := os.Getenv("REVIEW_PR_NUMBER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return t, fmt.Errorf("REVIEW_PR_NUMBER: %w", err)
		}
		t.PRNumber = n
	}
	return t, nil
}

// Prompt is the one-shot instruction for reviewing t.
func (t Target) Prompt() string {
	return fmt.Sprintf("Review PR #%d in %s/%s. Fetch the diff and return a structured review.", t.PRNumber, t.Owner, t.Repo)
}

// Finding is one issue raised by the review.
type Finding struct {
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Review is the structured result the model is asked to return.
type Review struct {
	Summary  string    `json:"summary"`
	Approved bool      `json:"approved"`
	Findings []Finding `json:"findings"`
}

// ParseReview decodes the review carried by the final assistant message.
func ParseReview(ev *copilot.SessionEvent) (*Review, error) {
	return copilot.DecodeJSONContent[Review](ev)
}

// SessionConfig returns the session configuration for the review agent.
func SessionConfig(opts Options) *copilot.SessionConfig {
	return &copilot.SessionConfig{
		Model:         copilot.DefaultModel,
		Streaming:     true,
		SystemMessage: &copilot.SystemMessageConfig{Content: SystemPrompt},
		Tools:         Tools(opts),
	}
}
