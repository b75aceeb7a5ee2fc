// Package support is a customer support agent: knowledge base search,
// account lookup, ticketing and escalation to a human.
package support

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

const (
	// Label prefixes each prompt in the interactive loop.
	Label = "Customer: "
	// Banner is printed when the loop starts.
	Banner = "Customer Support Agent (type 'exit' to quit)"
)

// SystemPrompt instructs the model how to behave as a support agent.
const SystemPrompt = "You are a friendly and knowledgeable customer support agent for Acme Corp. " +
	"Use your tools to look up information and resolve customer issues accurately. " +
	"Never guess or make up information; always use a tool first. " +
	"Keep responses concise and warm. After resolving an issue, ask if there is " +
	"anything else you can help with."

// Options configures the support tools.
type Options struct {
	// KBURL is the knowledge base API root. Empty returns a canned article.
	KBURL string
	// HTTPClient is used for knowledge base calls.
	HTTPClient *http.Client
	// NewID generates ticket IDs. Defaults to random UUIDs.
	NewID  func() string
	Logger *logging.Logger
}

// OptionsFromEnv reads KB_API_URL.
func OptionsFromEnv() Options {
	return Options{KBURL: os.Getenv("KB_API_URL")}
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// SessionConfig returns the session configuration for the support agent.
func SessionConfig(opts Options) *copilot.SessionConfig {
	return &copilot.SessionConfig{
		Model:         copilot.DefaultModel,
		Streaming:     true,
		SystemMessage: &copilot.SystemMessageConfig{Content: SystemPrompt},
		Tools:         Tools(opts),
	}
}
