package github

import (
	"context"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

// IssueSource defines the GitHub operations the export pipeline needs
type IssueSource interface {
	FetchIssues(ctx context.Context, owner, repo string, filter models.IssueFilter) ([]models.Issue, error)
	FetchComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error)
	CacheProjectStatuses(ctx context.Context, org string, projectNumber int, cache *StatusCache) error
}

// RepositoryInfo defines repository information interface
type RepositoryInfo interface {
	GetOwner() string
	GetName() string
}

// Ensure Client implements IssueSource interface
var _ IssueSource = (*Client)(nil)
