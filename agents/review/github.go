package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
)

var (
	// ErrMissingToken is returned when no GitHub token is configured.
	ErrMissingToken = errors.New("GITHUB_TOKEN or GH_TOKEN environment variable is required")

	repoPartRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// APIError is a non-2xx GitHub response.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error: %d", e.StatusCode)
}

// Comment is a posted review comment.
type Comment struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// CommentRequest is the body of an inline review comment.
type CommentRequest struct {
	Body     string `json:"body"`
	CommitID string `json:"commit_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Side     string `json:"side"`
}

// GitHub is a minimal pull request client.
type GitHub struct {
	base string
	http *http.Client
}

// NewGitHub returns a client authenticating with token via a static OAuth2
// token source layered over base (nil uses http.DefaultClient).
func NewGitHub(baseURL, token string, base *http.Client) (*GitHub, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &GitHub{base: strings.TrimRight(baseURL, "/"), http: oauth2.NewClient(ctx, src)}, nil
}

// ValidateRepo checks owner and repo against GitHub's name rules.
func ValidateRepo(owner, repo string) error {
	if !repoPartRe.MatchString(owner) {
		return fmt.Errorf("Invalid owner %q.", owner)
	}
	if !repoPartRe.MatchString(repo) {
		return fmt.Errorf("Invalid repository %q.", repo)
	}
	return nil
}

func (g *GitHub) pullURL(owner, repo string, pr int) string {
	return fmt.Sprintf("%s/repos/%s/%s/pulls/%d", g.base, owner, repo, pr)
}

// FetchDiff returns the unified diff of a pull request.
func (g *GitHub) FetchDiff(ctx context.Context, owner, repo string, pr int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.pullURL(owner, repo, pr), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch diff: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return string(b), nil
}

// PostComment creates an inline comment on the right side of the diff.
func (g *GitHub) PostComment(ctx context.Context, owner, repo string, pr int, c CommentRequest) (*Comment, error) {
	if c.Side == "" {
		c.Side = "RIGHT"
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.pullURL(owner, repo, pr)+"/comments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post comment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}
	var out Comment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode comment: %w", err)
	}
	return &out, nil
}
