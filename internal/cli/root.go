// Package cli implements the copilot-agents command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/armatrix/copilot-sdk-go/internal/config"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/internal/tracing"
)

// Flag and config keys shared by every subcommand.
const (
	keyConfig   = "config"
	keyLogLevel = "log-level"
	keyCLIPath  = "cli-path"
	keyCLIURL   = "cli-url"
	keyPort     = "port"
	keyModel    = "model"
	keyTrace    = "trace"

	keyMaxRequests = "max-premium-requests"
)

// app carries the state built in PersistentPreRunE.
type app struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	log    *logging.Logger
	tracer *tracing.Provider
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), in: in, out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "copilot-agents",
		Short: "Example agents on the GitHub Copilot CLI",
		Long: "copilot-agents runs the bundled support, devops, analyst and review agents " +
			"against a Copilot CLI server, and can expose sessions over HTTP.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.String(keyConfig, "", "config file (default ~/"+config.DirName+"/config.yaml)")
	f.String(keyLogLevel, "warn", "log level (trace, debug, info, warn, error, silent)")
	f.String(keyCLIPath, "", "Copilot CLI executable (default copilot from PATH)")
	f.String(keyCLIURL, "", "connect to a running CLI server instead of spawning one (host:port)")
	f.Int(keyPort, 0, "TCP port for the spawned CLI server (0 uses stdio)")
	f.String(keyModel, "", "model for new sessions")
	f.Bool(keyTrace, false, "print OpenTelemetry spans for every RPC call to stderr")
	f.Float64(keyMaxRequests, 0, "end interactive sessions after this many premium requests (0 is unlimited)")
	_ = a.v.BindPFlags(f)

	cmd.AddCommand(newSupportCmd(a))
	cmd.AddCommand(newDevopsCmd(a))
	cmd.AddCommand(newAnalystCmd(a))
	cmd.AddCommand(newReviewCmd(a))
	cmd.AddCommand(newPingCmd(a))
	cmd.AddCommand(newModelsCmd(a))
	cmd.AddCommand(newQuotaCmd(a))
	cmd.AddCommand(newToolsCmd(a))
	cmd.AddCommand(newAgentsCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

// init reads the config file and environment, then builds the logger and
// tracer.
func (a *app) init() error {
	a.v.SetEnvPrefix("COPILOT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	explicit := a.v.GetString(keyConfig)
	if explicit != "" {
		a.v.SetConfigFile(explicit)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, config.DirName))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if a.v.GetFloat64(keyMaxRequests) < 0 {
		return fmt.Errorf("--%s must not be negative", keyMaxRequests)
	}

	w := zerolog.ConsoleWriter{Out: a.errOut, TimeFormat: time.RFC3339}
	a.log = logging.New(w, a.v.GetString(keyLogLevel))

	tc := tracing.DefaultConfig()
	tc.Enabled = a.v.GetBool(keyTrace)
	tc.Writer = a.errOut
	tp, err := tracing.NewProvider(tc)
	if err != nil {
		return err
	}
	a.tracer = tp
	return nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.tracer == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.tracer.Shutdown(ctx)
}

// Execute runs the root command on the process streams.
func Execute(ctx context.Context) error {
	return newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}
