package copilot

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

// ClientOptions configures a Client. The zero value spawns "copilot" from
// PATH over stdio.
type ClientOptions struct {
	// CLIPath is the CLI executable. A path ending in ".js" is run with node.
	// COPILOT_CLI_PATH overrides the default but not an explicit value.
	CLIPath string

	// CLIArgs are prepended to the server arguments.
	CLIArgs []string

	// CLIUrl connects to an already running server instead of spawning one:
	// "host:port", "http://host:port" or a bare port. Mutually exclusive with
	// CLIPath, UseStdio and the auth options.
	CLIUrl string

	// UseStdio selects stdio transport (the default). Set to false, or set
	// Port, for TCP.
	UseStdio *bool

	// Port is the TCP port the spawned server listens on. Zero lets the CLI
	// pick one and announce it.
	Port int

	// Cwd is the working directory of the spawned CLI.
	Cwd string

	// Env replaces the CLI environment ("KEY=value"). Nil inherits os.Environ.
	Env []string

	// LogLevel is passed as --log-level.
	LogLevel string

	// GithubToken authenticates the CLI. When empty, COPILOT_GITHUB_TOKEN,
	// GH_TOKEN and GITHUB_TOKEN are consulted in that order.
	GithubToken string

	// UseLoggedInUser lets the CLI fall back to the stored login. Defaults to
	// true unless a token is available.
	UseLoggedInUser *bool

	// AutoStart starts the client on first use. Defaults to true.
	AutoStart *bool

	// Logger receives lifecycle, RPC and CLI stderr output. Nil disables logging.
	Logger *zerolog.Logger

	// TracerProvider records one span per RPC call. Nil disables tracing.
	TracerProvider trace.TracerProvider
}

// Bool returns a pointer to v, for the optional fields of ClientOptions.
func Bool(v bool) *bool { return &v }

// resolvedOptions is ClientOptions after defaults and environment fallbacks.
type resolvedOptions struct {
	cliPath         string
	cliArgs         []string
	external        bool
	host            string
	port            int
	stdio           bool
	cwd             string
	env             []string
	logLevel        string
	token           string
	useLoggedInUser bool
	autoStart       bool
	log             *logging.Logger
	tracerProvider  trace.TracerProvider
}

// resolveOptions validates o and fills defaults. Invalid combinations are
// reported as ErrInvalidOptions.
func resolveOptions(o *ClientOptions) (resolvedOptions, error) {
	if o == nil {
		o = &ClientOptions{}
	}
	r := resolvedOptions{
		cliPath:        o.CLIPath,
		cliArgs:        append([]string(nil), o.CLIArgs...),
		cwd:            o.Cwd,
		env:            o.Env,
		logLevel:       o.LogLevel,
		autoStart:      o.AutoStart == nil || *o.AutoStart,
		log:            logging.Nop(),
		tracerProvider: o.TracerProvider,
	}
	if o.Logger != nil {
		r.log = logging.FromZerolog(o.Logger).Sub("copilot")
	}
	if r.logLevel == "" {
		r.logLevel = DefaultLogLevel
	}

	if o.CLIUrl != "" {
		if o.CLIPath != "" {
			return r, fmt.Errorf("%w: CLIUrl is mutually exclusive with CLIPath", ErrInvalidOptions)
		}
		if o.UseStdio != nil && *o.UseStdio {
			return r, fmt.Errorf("%w: CLIUrl is mutually exclusive with UseStdio", ErrInvalidOptions)
		}
		if o.GithubToken != "" || o.UseLoggedInUser != nil {
			return r, fmt.Errorf("%w: GithubToken and UseLoggedInUser cannot be used with CLIUrl", ErrInvalidOptions)
		}
		host, port, err := parseCLIUrl(o.CLIUrl)
		if err != nil {
			return r, err
		}
		r.external, r.host, r.port = true, host, port
		return r, nil
	}

	if o.Port < 0 || o.Port > 65535 {
		return r, fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.Port)
	}
	switch {
	case o.UseStdio != nil:
		r.stdio = *o.UseStdio
	default:
		r.stdio = o.Port == 0
	}
	if r.stdio && o.Port != 0 {
		return r, fmt.Errorf("%w: Port requires UseStdio=false", ErrInvalidOptions)
	}
	r.port = o.Port
	r.host = "localhost"

	if r.cliPath == "" {
		r.cliPath = os.Getenv(envCLIPath)
	}
	if r.cliPath == "" {
		r.cliPath = DefaultCLIPath
	}

	r.token = o.GithubToken
	if r.token == "" {
		for _, key := range tokenEnvVars {
			if v := os.Getenv(key); v != "" {
				r.token = v
				break
			}
		}
	}
	r.useLoggedInUser = r.token == ""
	if o.UseLoggedInUser != nil {
		r.useLoggedInUser = *o.UseLoggedInUser
	}
	return r, nil
}

// parseCLIUrl accepts "host:port", "http(s)://host:port" and a bare port.
func parseCLIUrl(raw string) (string, int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimSuffix(s, "/")

	host, portStr := "localhost", s
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host, portStr = s[:i], s[i+1:]
		if host == "" {
			host = "localhost"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: invalid CLIUrl %q", ErrInvalidOptions, raw)
	}
	return host, port, nil
}
