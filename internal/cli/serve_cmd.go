package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents/analyst"
	"github.com/armatrix/copilot-sdk-go/agents/devops"
	"github.com/armatrix/copilot-sdk-go/agents/review"
	"github.com/armatrix/copilot-sdk-go/agents/support"
	"github.com/armatrix/copilot-sdk-go/internal/gateway"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
	"github.com/armatrix/copilot-sdk-go/session"
)

const (
	keyServeAddr     = "serve.addr"
	keyServeAgent    = "serve.agent"
	keyServeIdleTTL  = "serve.idle-ttl"
	keyServeStateDir = "serve.state-dir"
	keyServeOrigins  = "serve.allowed-origins"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose agent sessions to chat threads over HTTP and WebSocket",
		Long: "serve maps external thread IDs to Copilot sessions.\n\n" +
			"  POST   /threads/{id}/messages   {\"prompt\": \"...\"} -> {\"sessionId\", \"reply\"}\n" +
			"  GET    /threads/{id}/stream     websocket, ?prompt=...\n" +
			"  DELETE /threads/{id}\n\n" +
			"With --state-dir the thread map is kept on disk and sessions are resumed after a restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			base, err := agentProfile(a, a.v.GetString(keyServeAgent))
			if err != nil {
				return err
			}
			client, err := a.startClient(ctx)
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			profile := func(string) *copilot.SessionConfig {
				cfg, err := a.sessionConfig(base())
				if err != nil {
					a.log.Warn().Err(err).Msg("settings ignored")
					return base()
				}
				return cfg
			}

			var gw *gateway.Server
			ttl := a.v.GetDuration(keyServeIdleTTL)
			var registry session.Registry
			if dir := a.v.GetString(keyServeStateDir); dir != "" {
				store, err := session.NewFileStore(dir)
				if err != nil {
					return err
				}
				registry = store
				if ttl > 0 {
					go pruneLoop(ctx, store, ttl, func(e session.Entry) { gw.Release(e) }, a.log.Sub("registry"))
				}
			} else {
				registry = session.NewMemoryStore(ttl, func(e session.Entry) { gw.Release(e) })
			}

			gw = gateway.New(gateway.Options{
				Client:         client,
				Registry:       registry,
				Profile:        profile,
				Logger:         a.log.Sub("gateway"),
				AllowedOrigins: a.v.GetStringSlice(keyServeOrigins),
			})
			addr := a.v.GetString(keyServeAddr)
			fmt.Fprintf(a.out, "Serving %s agent on %s\n", a.v.GetString(keyServeAgent), addr)
			return gw.ListenAndServe(ctx, addr)
		},
	}

	f := cmd.Flags()
	f.String("addr", "127.0.0.1:8080", "listen address")
	f.String("agent", "support", "agent for new threads (support, devops, analyst, review, plain)")
	f.Duration("idle-ttl", 30*time.Minute, "destroy sessions of threads idle this long (0 keeps them)")
	f.String("state-dir", "", "persist the thread map in this directory")
	f.StringSlice("allowed-origin", nil, "browser origins allowed to open stream sockets")
	_ = a.v.BindPFlag(keyServeAddr, f.Lookup("addr"))
	_ = a.v.BindPFlag(keyServeAgent, f.Lookup("agent"))
	_ = a.v.BindPFlag(keyServeIdleTTL, f.Lookup("idle-ttl"))
	_ = a.v.BindPFlag(keyServeStateDir, f.Lookup("state-dir"))
	_ = a.v.BindPFlag(keyServeOrigins, f.Lookup("allowed-origin"))
	return cmd
}

// agentProfile returns a constructor for the base session configuration of
// the named agent.
func agentProfile(a *app, name string) (func() *copilot.SessionConfig, error) {
	switch name {
	case "support":
		return func() *copilot.SessionConfig {
			opts := support.OptionsFromEnv()
			opts.Logger = a.log.Sub("support")
			return support.SessionConfig(opts)
		}, nil
	case "devops":
		return func() *copilot.SessionConfig {
			opts := devops.OptionsFromEnv()
			opts.Logger = a.log.Sub("devops")
			return devops.SessionConfig(opts)
		}, nil
	case "analyst":
		return func() *copilot.SessionConfig {
			opts := analyst.OptionsFromEnv()
			opts.Logger = a.log.Sub("analyst")
			return analyst.SessionConfig(opts)
		}, nil
	case "review":
		return func() *copilot.SessionConfig {
			opts := review.OptionsFromEnv()
			opts.Logger = a.log.Sub("review")
			return review.SessionConfig(opts)
		}, nil
	case "plain", "":
		return func() *copilot.SessionConfig {
			return &copilot.SessionConfig{Model: copilot.DefaultModel, Streaming: true}
		}, nil
	}
	return nil, fmt.Errorf("unknown agent %q", name)
}

// pruner is the part of session.FileStore that pruneLoop needs.
type pruner interface {
	Prune(ctx context.Context, maxIdle time.Duration) ([]session.Entry, error)
}

// pruneLoop evicts idle threads from a file registry every ttl/2.
func pruneLoop(ctx context.Context, store pruner, ttl time.Duration, release func(session.Entry), log *logging.Logger) {
	ticker := time.NewTicker(max(ttl/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pruneOnce(ctx, store, ttl, release, log)
	}
}

// pruneOnce releases the entries pruned before any failure, then logs it.
func pruneOnce(ctx context.Context, store pruner, ttl time.Duration, release func(session.Entry), log *logging.Logger) {
	pruned, err := store.Prune(ctx, ttl)
	for _, e := range pruned {
		release(e)
	}
	if err != nil {
		log.Warn().Err(err).Int("released", len(pruned)).Msg("prune idle threads")
	}
}
