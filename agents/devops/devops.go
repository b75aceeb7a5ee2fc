// Package devops is an SRE assistant restricted to read-only kubectl.
package devops

import (
	"os"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

const (
	Label  = "Engineer: "
	Banner = "DevOps Agent (type 'exit' to quit)"
	Hint   = "Try: 'Check the health of api-gateway in production'"
)

// SystemPrompt instructs the model how to behave as an SRE assistant.
const SystemPrompt = "You are a senior SRE assistant. " +
	"Help with incident response, infrastructure health checks, and deployment analysis. " +
	"Only run read-only kubectl commands. Always confirm the environment before acting. " +
	"Summarize all findings clearly and suggest next investigation steps."

// Options configures the devops tools.
type Options struct {
	// Runner executes kubectl. Defaults to an ExecRunner.
	Runner Runner
	Logger *logging.Logger
}

// OptionsFromEnv builds options whose runner passes KUBECONFIG through.
func OptionsFromEnv() Options {
	return Options{Runner: &ExecRunner{Kubeconfig: os.Getenv("KUBECONFIG")}}
}

func (o Options) withDefaults() Options {
	if o.Runner == nil {
		o.Runner = &ExecRunner{}
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// SessionConfig returns the session configuration for the devops agent.
func SessionConfig(opts Options) *copilot.SessionConfig {
	return &copilot.SessionConfig{
		Model:         copilot.DefaultModel,
		Streaming:     true,
		SystemMessage: &copilot.SystemMessageConfig{Content: SystemPrompt},
		Tools:         Tools(opts),
	}
}
