package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/budget"
	"github.com/armatrix/copilot-sdk-go/internal/config"
)

// startClient connects to the CLI chosen by --cli-url, --cli-path and
// --port. The caller stops it.
func (a *app) startClient(ctx context.Context) (*copilot.Client, error) {
	zl := a.log.Zerolog()
	opts := &copilot.ClientOptions{
		Logger:         &zl,
		TracerProvider: a.tracer.TracerProvider(),
		LogLevel:       cliLogLevel(a.v.GetString(keyLogLevel)),
	}
	if url := a.v.GetString(keyCLIURL); url != "" {
		opts.CLIUrl = url
	} else {
		opts.CLIPath = a.v.GetString(keyCLIPath)
		if port := a.v.GetInt(keyPort); port > 0 {
			opts.Port = port
			opts.UseStdio = copilot.Bool(false)
		}
	}

	client := copilot.NewClient(opts)
	if err := client.Start(ctx); err != nil {
		client.ForceStop()
		return nil, fmt.Errorf("start copilot cli: %w", err)
	}
	return client, nil
}

// stopClient stops client and logs what could not be cleaned up.
func (a *app) stopClient(client *copilot.Client) {
	if err := client.Stop(); err != nil {
		a.log.Warn().Err(err).Msg("stop copilot cli")
	}
}

// cliLogLevel maps our level names to the ones the CLI accepts.
func cliLogLevel(level string) string {
	switch level {
	case "trace", "debug":
		return "debug"
	case "silent", "none":
		return "none"
	case "":
		return copilot.DefaultLogLevel
	}
	return level
}

// loadSettings reads the user and project settings files and returns the
// default custom agent directories for the working directory.
func (a *app) loadSettings() (*config.Settings, []string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	settings, err := config.LoadSettings(config.DefaultSettingsPaths(cwd)...)
	if err != nil {
		return nil, nil, err
	}
	return settings, config.DefaultAgentDirs(cwd), nil
}

// sessionConfig layers the settings files, custom agents and --model onto
// an agent's base configuration.
func (a *app) sessionConfig(cfg *copilot.SessionConfig) (*copilot.SessionConfig, error) {
	settings, agentDirs, err := a.loadSettings()
	if err != nil {
		return nil, err
	}
	if model := a.v.GetString(keyModel); model != "" {
		cfg.Model = model
	}
	settings.Apply(cfg)

	if cfg.OnPermissionRequest == nil {
		checker, err := settings.Checker()
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		cfg.OnPermissionRequest = copilot.PermissionHandlerFromChecker(checker)
	}

	agents, err := config.LoadAgents(append(agentDirs, settings.AgentDirs...)...)
	if err != nil {
		return nil, err
	}
	cfg.CustomAgents = append(cfg.CustomAgents, agents...)
	return cfg, nil
}

// newTracker returns a usage tracker priced with the multipliers the CLI
// reports and capped by --max-premium-requests.
func (a *app) newTracker(ctx context.Context, client *copilot.Client, model string) *budget.Tracker {
	models, err := client.ListModels(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("list models, premium requests counted at 1x")
	}
	limit := decimal.NewFromFloat(a.v.GetFloat64(keyMaxRequests))
	return budget.NewTracker(model, limit, budget.MultipliersFromModels(models))
}
