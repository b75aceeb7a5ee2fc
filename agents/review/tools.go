package review

import (
	"context"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents"
)

type diffArgs struct {
	Owner    string `json:"owner" jsonschema:"required,description=Repository owner"`
	Repo     string `json:"repo" jsonschema:"required,description=Repository name"`
	PRNumber int    `json:"pr_number" jsonschema:"required,description=Pull request number"`
}

type commentArgs struct {
	Owner    string `json:"owner" jsonschema:"required"`
	Repo     string `json:"repo" jsonschema:"required"`
	PRNumber int    `json:"pr_number" jsonschema:"required"`
	CommitID string `json:"commit_id" jsonschema:"required,description=Latest commit SHA on the PR"`
	Path     string `json:"path" jsonschema:"required,description=File path relative to repo root"`
	Line     int    `json:"line" jsonschema:"required,description=Line number in the diff"`
	Body     string `json:"body" jsonschema:"required,description=Comment text (supports Markdown)"`
}

// DiffResult is the output of fetch_diff.
type DiffResult struct {
	Diff string `json:"diff"`
}

// CommentResult is the output of post_review_comment.
type CommentResult struct {
	CommentID int64  `json:"comment_id"`
	URL       string `json:"url"`
}

// Tools returns the review agent's tools.
func Tools(opts Options) []copilot.Tool {
	t := &toolset{opts: opts.withDefaults()}
	return []copilot.Tool{
		copilot.DefineTool("fetch_diff", "Fetch the unified diff for a pull request", t.fetchDiff),
		copilot.DefineTool("post_review_comment", "Post an inline review comment on a specific line of a PR", t.postComment),
	}
}

type toolset struct {
	opts Options
}

func (t *toolset) client() (*GitHub, error) {
	token := t.opts.Token
	if token == "" {
		token = tokenFromEnv()
	}
	return NewGitHub(t.opts.BaseURL, token, t.opts.HTTPClient)
}

func (t *toolset) fetchDiff(ctx context.Context, in diffArgs, _ copilot.ToolInvocation) (any, error) {
	if err := ValidateRepo(in.Owner, in.Repo); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	gh, err := t.client()
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	diff, err := gh.FetchDiff(ctx, in.Owner, in.Repo, in.PRNumber)
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	t.opts.Logger.Debug().Str("repo", in.Owner+"/"+in.Repo).Int("pr", in.PRNumber).Int("bytes", len(diff)).Msg("fetched diff")
	return DiffResult{Diff: diff}, nil
}

func (t *toolset) postComment(ctx context.Context, in commentArgs, _ copilot.ToolInvocation) (any, error) {
	if err := ValidateRepo(in.Owner, in.Repo); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	gh, err := t.client()
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	c, err := gh.PostComment(ctx, in.Owner, in.Repo, in.PRNumber, CommentRequest{
		Body:     in.Body,
		CommitID: in.CommitID,
		Path:     in.Path,
		Line:     in.Line,
	})
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	return CommentResult{CommentID: c.ID, URL: c.HTMLURL}, nil
}
