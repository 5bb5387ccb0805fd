package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
	graphql "github.com/cli/shurcooL-graphql"
	"github.com/ryo246912/gh-issues-export/internal/models"
)

const (
	userAgent = "gh-issues-export"

	restMediaType    = "application/vnd.github+json"
	graphQLMediaType = "application/vnd.github.starfox-preview+json"

	pageSize = 100
)

// Options configures a Client
type Options struct {
	APIURL     string
	GraphQLURL string
	Token      string

	MaxRetries      int
	Backoff         time.Duration
	WaitOnRateLimit bool
	Timeout         time.Duration

	Logger *slog.Logger
	// HTTPLog receives verbose HTTP traces when set
	HTTPLog io.Writer
	// Transport overrides the underlying round tripper
	Transport http.RoundTripper
}

// Client wraps GitHub API clients
type Client struct {
	rest   *api.RESTClient
	gql    *graphql.Client
	apiURL string

	maxRetries      int
	backoff         time.Duration
	waitOnRateLimit bool

	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewClient(opts Options) (*Client, error) {
	if opts.APIURL == "" {
		return nil, fmt.Errorf("API URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	host, err := hostOf(opts.APIURL)
	if err != nil {
		return nil, err
	}
	graphQLURL := opts.GraphQLURL
	if graphQLURL == "" {
		graphQLURL = GraphQLURLFor(opts.APIURL)
	}

	restClient, err := api.NewRESTClient(clientOptions(opts, host, restMediaType))
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	gqlHTTP, err := api.NewHTTPClient(clientOptions(opts, host, graphQLMediaType))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL client: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		rest:            restClient,
		gql:             graphql.NewClient(graphQLURL, gqlHTTP),
		apiURL:          strings.TrimRight(opts.APIURL, "/"),
		maxRetries:      opts.MaxRetries,
		backoff:         opts.Backoff,
		waitOnRateLimit: opts.WaitOnRateLimit,
		log:             logger,
		sleep:           sleepContext,
		now:             time.Now,
	}, nil
}

func clientOptions(opts Options, host, accept string) api.ClientOptions {
	o := api.ClientOptions{
		Host:      host,
		AuthToken: opts.Token,
		Headers: map[string]string{
			"Authorization": "Bearer " + opts.Token,
			"Accept":        accept,
			"User-Agent":    userAgent,
		},
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
	}
	if opts.HTTPLog != nil {
		o.Log = opts.HTTPLog
		o.LogVerboseHTTP = true
	}
	return o
}

// FetchIssues fetches every issue of the repository, pull requests excluded
func (c *Client) FetchIssues(ctx context.Context, owner, repo string, filter models.IssueFilter) ([]models.Issue, error) {
	params := filter.Values()
	params.Set("per_page", strconv.Itoa(pageSize))

	issuesURL := fmt.Sprintf("%s/repos/%s/%s/issues", c.apiURL, url.PathEscape(owner), url.PathEscape(repo))
	all, err := paginate[models.Issue](ctx, c, issuesURL, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues: %w", err)
	}

	issues := make([]models.Issue, 0, len(all))
	for _, issue := range all {
		if issue.IsPullRequest() {
			continue
		}
		issues = append(issues, issue)
	}
	c.log.Debug("Fetched issues", "repo", owner+"/"+repo, "issues", len(issues), "pull_requests", len(all)-len(issues))
	return issues, nil
}

// FetchComments fetches every comment of an issue, oldest first
func (c *Client) FetchComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(pageSize))

	commentsURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, url.PathEscape(owner), url.PathEscape(repo), number)
	comments, err := paginate[models.Comment](ctx, c, commentsURL, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments for issue #%d: %w", number, err)
	}
	return comments, nil
}

// GraphQLURLFor derives the GraphQL endpoint from a REST API base URL
func GraphQLURLFor(apiURL string) string {
	u := strings.TrimRight(apiURL, "/")
	if base, ok := strings.CutSuffix(u, "/api/v3"); ok {
		return base + "/api/graphql"
	}
	return u + "/graphql"
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("invalid API URL %q: missing host", rawURL)
	}
	return u.Hostname(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
