package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/armatrix/copilot-sdk-go/agents"
	"github.com/armatrix/copilot-sdk-go/agents/analyst"
	"github.com/armatrix/copilot-sdk-go/agents/devops"
	"github.com/armatrix/copilot-sdk-go/agents/support"
)

// interactive describes one REPL agent.
type interactive struct {
	name, short  string
	banner, hint string
	label        string
}

func newSupportCmd(a *app) *cobra.Command {
	return newInteractiveCmd(a, interactive{
		name:   "support",
		short:  "Customer support agent with knowledge base and ticketing tools",
		banner: support.Banner,
		label:  support.Label,
	})
}

func newDevopsCmd(a *app) *cobra.Command {
	return newInteractiveCmd(a, interactive{
		name:   "devops",
		short:  "Read-only Kubernetes SRE agent",
		banner: devops.Banner,
		hint:   devops.Hint,
		label:  devops.Label,
	})
}

func newAnalystCmd(a *app) *cobra.Command {
	return newInteractiveCmd(a, interactive{
		name:   "analyst",
		short:  "Data analyst agent over SQL and CSV files",
		banner: analyst.Banner,
		hint:   analyst.Hint,
		label:  analyst.Label,
	})
}

func newInteractiveCmd(a *app, spec interactive) *cobra.Command {
	return &cobra.Command{
		Use:   spec.name,
		Short: spec.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			base, err := agentProfile(a, spec.name)
			if err != nil {
				return err
			}
			cfg, err := a.sessionConfig(base())
			if err != nil {
				return err
			}
			client, err := a.startClient(ctx)
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			session, err := client.CreateSession(ctx, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, spec.banner)
			if spec.hint != "" {
				fmt.Fprintln(a.out, spec.hint)
			}
			fmt.Fprintln(a.out)

			tracker := a.newTracker(ctx, client, cfg.Model)
			session.On(tracker.Observe)

			repl := agents.REPL{Label: spec.label, In: a.in, Out: a.out, Exhausted: tracker.Exhausted}
			err = repl.Run(ctx, session)
			fmt.Fprintln(a.out, "Usage:", tracker.Summary())
			return err
		},
	}
}
