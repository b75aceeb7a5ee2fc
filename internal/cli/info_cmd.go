package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/config"
	"github.com/armatrix/copilot-sdk-go/rpc"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [message]",
		Short: "Check that the CLI server answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := "ping"
			if len(args) == 1 {
				msg = args[0]
			}
			client, err := a.startClient(cmd.Context())
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			res, err := client.Ping(cmd.Context(), msg)
			if err != nil {
				return err
			}
			version := "unknown"
			if res.ProtocolVersion != nil {
				version = fmt.Sprint(*res.ProtocolVersion)
			}
			fmt.Fprintf(a.out, "%s (protocol %s)\n", res.Message, version)
			return nil
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.startClient(cmd.Context())
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMULTIPLIER")
			for _, m := range models {
				multiplier := "-"
				if m.Billing != nil {
					multiplier = m.Billing.Multiplier.String() + "x"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, multiplier)
			}
			return tw.Flush()
		},
	}
}

func newQuotaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show premium request quota usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.startClient(cmd.Context())
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			res, err := client.RPC.Account.GetQuota(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(res.QuotaSnapshots))
			for name := range res.QuotaSnapshots {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUOTA\tUSED\tENTITLED\tREMAINING\tRESETS")
			for _, name := range names {
				q := res.QuotaSnapshots[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\t%s\n", name,
					q.UsedRequests.String(), q.EntitlementRequests.String(),
					q.RemainingPercentage.StringFixed(1), q.ResetDate)
			}
			return tw.Flush()
		},
	}
}

func newToolsCmd(a *app) *cobra.Command {
	var model, agent, query string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the built-in tools of the CLI, or an agent's own tools",
		Long: "tools lists the CLI's built-in tools. With --agent it lists the tools that agent " +
			"registers on its sessions instead, without contacting the CLI; --search filters either list " +
			"by name or description.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if agent != "" {
				return a.listAgentTools(agent, query)
			}

			client, err := a.startClient(cmd.Context())
			if err != nil {
				return err
			}
			defer a.stopClient(client)

			if model == "" {
				model = a.v.GetString(keyModel)
			}
			res, err := client.RPC.Tools.List(cmd.Context(), &rpc.ToolsListParams{Model: model})
			if err != nil {
				return err
			}
			q := strings.ToLower(query)
			for _, t := range res.Tools {
				name := t.Name
				if t.NamespacedName != "" {
					name = t.NamespacedName
				}
				if !strings.Contains(strings.ToLower(name), q) && !strings.Contains(strings.ToLower(t.Description), q) {
					continue
				}
				fmt.Fprintf(a.out, "%s - %s\n", name, t.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "for-model", "", "list the tools offered to this model")
	cmd.Flags().StringVar(&agent, "agent", "", "list the client-side tools of this agent (support, devops, analyst, review)")
	cmd.Flags().StringVar(&query, "search", "", "only list tools whose name or description contains this text")
	return cmd
}

func (a *app) listAgentTools(name, query string) error {
	profile, err := agentProfile(a, name)
	if err != nil {
		return err
	}
	reg, err := copilot.NewToolRegistry(profile().Tools...)
	if err != nil {
		return err
	}
	matches := reg.Search(query)
	if len(matches) == 0 {
		fmt.Fprintln(a.out, "No matching tools.")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(a.out, "%s - %s\n", m.Name, m.Description)
	}
	return nil
}

func newAgentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "agents [dir...]",
		Short: "List custom agent definitions",
		Long: "agents lists the YAML custom agents found in ~/" + config.DirName + "/agents, " +
			"./" + config.DirName + "/agents, the settings' agentDirs and any directories given.",
		RunE: func(_ *cobra.Command, args []string) error {
			settings, dirs, err := a.loadSettings()
			if err != nil {
				return err
			}
			dirs = append(dirs, settings.AgentDirs...)
			all, err := config.LoadAgents(append(dirs, args...)...)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(a.out, "No custom agents found.")
				return nil
			}
			fmt.Fprint(a.out, config.FormatAgentList(all))
			return nil
		},
	}
}
