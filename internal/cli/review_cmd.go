package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents/review"
)

func newReviewCmd(a *app) *cobra.Command {
	var (
		owner, repo string
		pr          int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a GitHub pull request",
		Long: "review fetches the pull request diff and asks the model for a structured review. " +
			"The target defaults to REVIEW_OWNER, REVIEW_REPO and REVIEW_PR_NUMBER.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, err := review.TargetFromEnv()
			if err != nil {
				return err
			}
			if owner != "" {
				target.Owner = owner
			}
			if repo != "" {
				target.Repo = repo
			}
			if pr > 0 {
				target.PRNumber = pr
			}
			if err := review.ValidateRepo(target.Owner, target.Repo); err != nil {
				return err
			}

			opts := review.OptionsFromEnv()
			opts.Logger = a.log.Sub("review")
			cfg, err := a.sessionConfig(review.SessionConfig(opts))
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
			if !asJSON {
				session.On(func(ev copilot.SessionEvent) {
					switch ev.Type {
					case copilot.AssistantMessageDelta:
						fmt.Fprint(a.out, ev.Data.DeltaContent)
					case copilot.SessionIdle:
						fmt.Fprintln(a.out)
					}
				})
			}

			final, err := session.SendAndWait(ctx, copilot.MessageOptions{Prompt: target.Prompt()})
			if err != nil {
				return err
			}
			if !asJSON {
				return nil
			}
			parsed, err := review.ParseReview(final)
			if err != nil {
				return fmt.Errorf("parse review: %w", err)
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(parsed)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name")
	cmd.Flags().IntVar(&pr, "pr", 0, "pull request number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print only the parsed review as JSON")
	return cmd
}
