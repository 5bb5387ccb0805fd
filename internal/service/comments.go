package service

import (
	"context"
	"log/slog"

	"github.com/ryo246912/gh-issues-export/internal/github"
	"github.com/ryo246912/gh-issues-export/internal/models"
	"golang.org/x/sync/errgroup"
)

// CommentLoader fetches comments for a batch of issues. A failure for one
// issue yields an empty list for it and never aborts the batch.
type CommentLoader interface {
	LoadComments(ctx context.Context, repo github.RepositoryInfo, numbers []int) map[int][]models.Comment
}

// NewCommentLoader picks the sequential loader for concurrency <= 1
func NewCommentLoader(source github.IssueSource, concurrency int, logger *slog.Logger) CommentLoader {
	if concurrency <= 1 {
		return &SequentialLoader{source: source, log: logger}
	}
	return &ConcurrentLoader{source: source, limit: concurrency, log: logger}
}

// SequentialLoader fetches one issue's comments at a time
type SequentialLoader struct {
	source github.IssueSource
	log    *slog.Logger
}

func (l *SequentialLoader) LoadComments(ctx context.Context, repo github.RepositoryInfo, numbers []int) map[int][]models.Comment {
	out := make(map[int][]models.Comment, len(numbers))
	for _, n := range numbers {
		out[n] = loadOne(ctx, l.source, repo, n, l.log)
	}
	return out
}

// ConcurrentLoader keeps at most limit comment fetches in flight
type ConcurrentLoader struct {
	source github.IssueSource
	limit  int
	log    *slog.Logger
}

func (l *ConcurrentLoader) LoadComments(ctx context.Context, repo github.RepositoryInfo, numbers []int) map[int][]models.Comment {
	// one slot per issue, so goroutines never share a buffer
	results := make([][]models.Comment, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)
	for i, n := range numbers {
		g.Go(func() error {
			results[i] = loadOne(gctx, l.source, repo, n, l.log)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int][]models.Comment, len(numbers))
	for i, n := range numbers {
		out[n] = results[i]
	}
	return out
}

func loadOne(ctx context.Context, source github.IssueSource, repo github.RepositoryInfo, number int, logger *slog.Logger) []models.Comment {
	if ctx.Err() != nil {
		return []models.Comment{}
	}
	comments, err := source.FetchComments(ctx, repo.GetOwner(), repo.GetName(), number)
	if err != nil {
		logger.Warn("Failed to fetch comments", "issue", number, "err", err)
		return []models.Comment{}
	}
	if comments == nil {
		return []models.Comment{}
	}
	return comments
}

var (
	_ CommentLoader = (*SequentialLoader)(nil)
	_ CommentLoader = (*ConcurrentLoader)(nil)
)
