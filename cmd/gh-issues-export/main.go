package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cli/go-gh/v2/pkg/repository"
	"github.com/ryo246912/gh-issues-export/internal/config"
	"github.com/ryo246912/gh-issues-export/internal/github"
	"github.com/ryo246912/gh-issues-export/internal/logging"
	"github.com/ryo246912/gh-issues-export/internal/models"
	"github.com/ryo246912/gh-issues-export/internal/service"
	"github.com/ryo246912/gh-issues-export/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RepositoryAdapter adapts repository.Repository to our interface
type RepositoryAdapter struct {
	repo *repository.Repository
}

func (r *RepositoryAdapter) GetOwner() string {
	return r.repo.Owner
}

func (r *RepositoryAdapter) GetName() string {
	return r.repo.Name
}

// app carries state shared by every subcommand
type app struct {
	v        *viper.Viper
	cfgFile  string
	envFile  string
	filter   filterFlags
	cfg      *config.Config
	log      *slog.Logger
	prompter ui.Prompter
	stdout   io.Writer
	stderr   io.Writer
}

type filterFlags struct {
	state     string
	labels    []string
	since     string
	assignee  string
	creator   string
	mentioned string
	milestone string
}

func newApp() *app {
	return &app{
		v:        config.New(),
		prompter: &ui.DefaultPrompter{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// setup runs before every subcommand: .env, config file, logger, config
func (a *app) setup() error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	if err := config.ReadConfigFile(a.v, a.cfgFile); err != nil {
		return err
	}

	logger, err := logging.New(a.stderr, a.v.GetString(config.KeyLogFormat), a.v.GetBool(config.KeyVerbose))
	if err != nil {
		return err
	}
	a.log = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug("Using config file", "path", used)
	}

	cfg, err := config.Load(a.v, a.log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// newService builds the fetch pipeline for repo, or the configured
// repository when repo is empty
func (a *app) newService(repo string) (*service.ExportService, error) {
	target := a.cfg.Repository
	if repo != "" {
		parsed, err := config.ParseRepository(repo)
		if err != nil {
			return nil, err
		}
		target = parsed
	}

	opts := a.cfg.ClientOptions(a.log)
	if a.cfg.Verbose {
		opts.HTTPLog = a.stderr
	}
	client, err := github.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	loader := service.NewCommentLoader(client, a.cfg.Concurrency, a.log)
	return service.NewExportService(client, &RepositoryAdapter{repo: &target}, loader, a.log), nil
}

func (a *app) fetchOptions() (service.FetchOptions, error) {
	since, err := models.ParseSince(a.filter.since)
	if err != nil {
		return service.FetchOptions{}, err
	}
	return service.FetchOptions{
		Filter: models.IssueFilter{
			State:     a.filter.state,
			Labels:    a.filter.labels,
			Since:     since,
			Assignee:  a.filter.assignee,
			Creator:   a.filter.creator,
			Mentioned: a.filter.mentioned,
			Milestone: a.filter.milestone,
		},
		IncludeComments: a.cfg.IncludeComments,
		IncludeStatus:   a.cfg.IncludeStatus,
		ProjectNumber:   a.cfg.ProjectNumber,
	}, nil
}

func newRootCmd(a *app) *cobra.Command {
	exportCmd := newExportCmd(a)

	root := &cobra.Command{
		Use:   "gh-issues-export",
		Short: "Export GitHub issues with comments and project status",
		Long: `Export the issues of a repository, with their comments and GitHub
Projects (V2) status, to CSV, Excel, JSON or SQLite, and summarize them.

Example:
  gh issues-export -R acme/widgets -o issues.xlsx
  gh issues-export summary --by-product --period 1m`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE:         exportCmd.RunE,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .gh-issues-export.yaml)")
	pf.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load")
	pf.Bool("verbose", false, "enable debug logging and HTTP traces")
	pf.String("log-format", "text", "log format: text or json")
	pf.StringP("repo", "R", "", "repository in owner/name format (default: current repository)")
	pf.String("token", "", "GitHub token (default: GH_TOKEN, GITHUB_TOKEN or gh auth)")
	pf.String("api-url", config.DefaultAPIURL, "GitHub REST API base URL")
	pf.String("graphql-url", "", "GitHub GraphQL endpoint (default: derived from --api-url)")
	pf.Bool("comments", true, "fetch issue comments")
	pf.Bool("project-status", true, "resolve each issue's GitHub Projects status")
	pf.Int("project", 2, "organization project number holding the Status field")
	pf.Int("max-retries", 3, "retries for transient request failures")
	pf.Duration("backoff", config.DefaultBackoff, "base delay between retries, doubled per attempt")
	pf.Bool("wait-rate-limit", true, "sleep until the rate limit resets instead of failing")
	pf.Int("concurrency", 5, "concurrent comment requests (1 fetches sequentially)")
	pf.Duration("timeout", config.DefaultTimeout, "per-request HTTP timeout")

	pf.StringVar(&a.filter.state, "state", "all", "issue state: open, closed or all")
	pf.StringSliceVarP(&a.filter.labels, "label", "l", nil, "only issues with these labels")
	pf.StringVar(&a.filter.since, "since", "", "only issues updated at or after this date (YYYY-MM-DD or RFC3339)")
	pf.StringVar(&a.filter.assignee, "assignee", "", "only issues assigned to this user")
	pf.StringVar(&a.filter.creator, "creator", "", "only issues created by this user")
	pf.StringVar(&a.filter.mentioned, "mentioned", "", "only issues mentioning this user")
	pf.StringVar(&a.filter.milestone, "milestone", "", "only issues in this milestone (number, * or none)")

	bindings := map[string]string{
		config.KeyVerbose:         "verbose",
		config.KeyLogFormat:       "log-format",
		config.KeyRepo:            "repo",
		config.KeyToken:           "token",
		config.KeyAPIURL:          "api-url",
		config.KeyGraphQLURL:      "graphql-url",
		config.KeyIncludeComments: "comments",
		config.KeyIncludeStatus:   "project-status",
		config.KeyProjectNumber:   "project",
		config.KeyMaxRetries:      "max-retries",
		config.KeyBackoff:         "backoff",
		config.KeyWaitRateLimit:   "wait-rate-limit",
		config.KeyConcurrency:     "concurrency",
		config.KeyTimeout:         "timeout",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	// the root command runs export, so it accepts export's flags too
	root.Flags().AddFlagSet(exportCmd.Flags())

	root.AddCommand(exportCmd, newSummaryCmd(a), newMetricsCmd(a), newMCPCmd(a))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
