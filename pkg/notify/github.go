package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v83/github"
	"golang.org/x/oauth2"
)

const (
	// ContextDefault is the status check name shown on the commit.
	ContextDefault = "pwgate/strength"

	StateSuccess = "success"
	StateFailure = "failure"
	StateError   = "error"

	userAgent          = "pwgate"
	rateLimitThreshold = 10
	maxDescriptionLen  = 140
)

// Outcome is the result of a run reported on a commit. Failed marks a run
// rejected by a quality gate, Errored one that could not complete.
type Outcome struct {
	Version  int
	Metric   float64
	Promoted bool
	Failed   bool
	Errored  bool
	Reason   string
	URL      string
}

// State returns the commit status state for the outcome.
func (o *Outcome) State() string {
	switch {
	case o.Errored:
		return StateError
	case o.Failed:
		return StateFailure
	default:
		return StateSuccess
	}
}

// Description returns the short text shown next to the status.
func (o *Outcome) Description() string {
	var d string
	switch {
	case o.Errored:
		d = fmt.Sprintf("v%d errored: %s", o.Version, o.Reason)
	case o.Failed:
		d = fmt.Sprintf("v%d failed: %s", o.Version, o.Reason)
	case o.Promoted:
		d = fmt.Sprintf("v%d promoted, avg score %.3f", o.Version, o.Metric)
	default:
		d = fmt.Sprintf("v%d kept previous best, avg score %.3f", o.Version, o.Metric)
	}
	if len(d) > maxDescriptionLen {
		d = d[:maxDescriptionLen]
	}
	return d
}

// GetOAuthClient returns an HTTP client that sends the token on each request.
func GetOAuthClient(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{
			TokenType:   "token",
			AccessToken: token,
		},
	)
	return oauth2.NewClient(ctx, ts)
}

// GitHubNotifier posts commit statuses to a single repository.
type GitHubNotifier struct {
	client  *github.Client
	owner   string
	repo    string
	context string
	logger  *slog.Logger
}

// NewGitHub creates a notifier for repo ("owner/name"). An empty baseURL
// targets the public GitHub API.
func NewGitHub(ctx context.Context, token, repo, statusContext, baseURL string) (*GitHubNotifier, error) {
	if token == "" {
		return nil, errors.New("github token required")
	}

	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repo %q, expected owner/name", repo)
	}

	client := github.NewClient(GetOAuthClient(ctx, token))
	client.UserAgent = userAgent

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}

	if statusContext == "" {
		statusContext = ContextDefault
	}

	return &GitHubNotifier{
		client:  client,
		owner:   owner,
		repo:    name,
		context: statusContext,
		logger:  slog.Default().With("notifier", "github", "repo", repo),
	}, nil
}

// Notify sets the commit status of sha to the outcome.
func (n *GitHubNotifier) Notify(ctx context.Context, sha string, o *Outcome) error {
	if sha == "" {
		return errors.New("commit sha required")
	}
	if o == nil {
		return errors.New("outcome required")
	}

	status := &github.RepoStatus{
		State:       github.Ptr(o.State()),
		Description: github.Ptr(o.Description()),
		Context:     github.Ptr(n.context),
	}
	if o.URL != "" {
		status.TargetURL = github.Ptr(o.URL)
	}

	created, resp, err := n.client.Repositories.CreateStatus(ctx, n.owner, n.repo, sha, *status)
	if err != nil {
		return fmt.Errorf("error creating commit status for %s: %w", sha, err)
	}
	checkRateLimit(n.logger, resp)

	n.logger.Debug("commit status created", "sha", sha, "state", created.GetState(), "id", created.GetID())
	return nil
}

func checkRateLimit(logger *slog.Logger, resp *github.Response) {
	if resp == nil {
		return
	}

	if resp.Rate.Limit == 0 || resp.Rate.Remaining > rateLimitThreshold {
		return
	}

	logger.Warn("github rate limit approaching",
		"remaining", resp.Rate.Remaining,
		"reset_at", resp.Rate.Reset.Time,
	)
}
