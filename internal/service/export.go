package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/export"
	"github.com/ryo246912/gh-issues-export/internal/github"
	"github.com/ryo246912/gh-issues-export/internal/models"
)

// FetchOptions selects what a fetch resolves besides the issues themselves
type FetchOptions struct {
	Filter          models.IssueFilter
	IncludeComments bool
	IncludeStatus   bool
	ProjectNumber   int
}

// ExportService contains the fetch pipeline
type ExportService struct {
	client   github.IssueSource
	repo     github.RepositoryInfo
	comments CommentLoader
	log      *slog.Logger
}

// NewExportService creates a new service instance
func NewExportService(client github.IssueSource, repo github.RepositoryInfo, comments CommentLoader, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if comments == nil {
		comments = NewCommentLoader(client, 1, logger)
	}
	return &ExportService{
		client:   client,
		repo:     repo,
		comments: comments,
		log:      logger,
	}
}

// Repository returns "owner/name"
func (s *ExportService) Repository() string {
	return s.repo.GetOwner() + "/" + s.repo.GetName()
}

// FetchIssues fetches repository issues, optionally with comments and project
// status resolved. Only a failure of the issues listing itself, or ctx being
// done, is returned; status and comment failures degrade to blank fields.
func (s *ExportService) FetchIssues(ctx context.Context, opts FetchOptions) ([]models.Issue, error) {
	if err := opts.Filter.Validate(); err != nil {
		return nil, err
	}

	var statuses *github.StatusCache
	if opts.IncludeStatus {
		statuses = s.cacheStatuses(ctx, opts.ProjectNumber)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("interrupted while caching project statuses: %w", err)
		}
	}

	s.log.Info("Fetching issues", "repo", s.Repository())
	issues, err := s.client.FetchIssues(ctx, s.repo.GetOwner(), s.repo.GetName(), opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues for %s: %w", s.Repository(), err)
	}
	s.log.Info("Fetched issues", "count", len(issues))

	if opts.IncludeComments && len(issues) > 0 {
		numbers := make([]int, len(issues))
		for i, issue := range issues {
			numbers[i] = issue.Number
		}
		s.log.Info("Fetching comments", "issues", len(numbers))
		byIssue := s.comments.LoadComments(ctx, s.repo, numbers)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("interrupted while fetching comments: %w", err)
		}
		for i := range issues {
			issues[i].Comments = byIssue[issues[i].Number]
		}
	}

	for i := range issues {
		issues[i].ProjectStatus = statuses.StatusFor(issues[i].Number)
	}
	return issues, nil
}

// cacheStatuses builds this run's status cache; failures leave it partial
func (s *ExportService) cacheStatuses(ctx context.Context, projectNumber int) *github.StatusCache {
	cache := github.NewStatusCache()
	org := s.repo.GetOwner()
	s.log.Info("Caching project statuses", "org", org, "project", projectNumber)
	if err := s.client.CacheProjectStatuses(ctx, org, projectNumber, cache); err != nil {
		s.log.Error("Error caching project statuses, continuing without them", "err", err, "cached", cache.Len())
		return cache
	}
	s.log.Info("Cached project statuses", "count", cache.Len())
	return cache
}

// ExportResult describes a written export
type ExportResult struct {
	Repository string        `json:"repository"`
	Output     string        `json:"output"`
	Format     export.Format `json:"format"`
	Issues     int           `json:"issues"`
}

// ExportIssues fetches issues and writes them to output in the format its
// extension selects
func (s *ExportService) ExportIssues(ctx context.Context, opts FetchOptions, output string, fields []export.Field) (*ExportResult, error) {
	issues, err := s.FetchIssues(ctx, opts)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Repository: s.Repository(),
		ExportedAt: time.Now(),
		Fields:     fields,
		Issues:     issues,
	}
	if err := export.Export(output, doc); err != nil {
		return nil, fmt.Errorf("failed to export issues: %w", err)
	}
	s.log.Info("Exported issues", "count", len(issues), "output", output)

	return &ExportResult{
		Repository: s.Repository(),
		Output:     output,
		Format:     export.FormatFromPath(output),
		Issues:     len(issues),
	}, nil
}
