package copilot

import "time"

const (
	// SdkProtocolVersion is the protocol version this SDK speaks. The CLI
	// must report the same value from ping.
	SdkProtocolVersion = 2

	// DefaultCLIPath is the executable looked up on PATH when neither
	// ClientOptions.CLIPath nor COPILOT_CLI_PATH is set.
	DefaultCLIPath = "copilot"

	// DefaultLogLevel is the CLI log level.
	DefaultLogLevel = "info"

	// DefaultModel is the model used by the bundled agents.
	DefaultModel = "gpt-4.1"

	// DefaultStartTimeout bounds how long Start waits for a TCP-mode CLI to
	// announce its port.
	DefaultStartTimeout = 10 * time.Second

	// DefaultStopTimeout bounds each session.destroy issued by Stop.
	DefaultStopTimeout = 5 * time.Second

	// DefaultStreamBufferSize is the channel buffer of an EventStream.
	DefaultStreamBufferSize = 64
)

const (
	envCLIPath   = "COPILOT_CLI_PATH"
	authTokenEnv = "COPILOT_SDK_AUTH_TOKEN"
)

// tokenEnvVars are consulted in order when ClientOptions.GithubToken is empty.
var tokenEnvVars = []string{"COPILOT_GITHUB_TOKEN", "GH_TOKEN", "GITHUB_TOKEN"}
