package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/export"
	"github.com/ryo246912/gh-issues-export/internal/github"
	"github.com/ryo246912/gh-issues-export/internal/models"
)

func newTestService(client *github.MockClient, concurrency int) *ExportService {
	logger := slog.New(slog.DiscardHandler)
	repo := &github.MockRepository{Owner: "acme", Name: "widgets"}
	return NewExportService(client, repo, NewCommentLoader(client, concurrency, logger), logger)
}

func TestExportService_FetchIssues(t *testing.T) {
	tests := []struct {
		name            string
		opts            FetchOptions
		statuses        map[int]string
		statusError     error
		expectStatusRun bool
		expectComments  bool
		expectedStatus  map[int]string
	}{
		{
			name:            "comments and status resolved",
			opts:            FetchOptions{IncludeComments: true, IncludeStatus: true, ProjectNumber: 2},
			statuses:        map[int]string{1: "Done", 2: models.NoStatusSet},
			expectStatusRun: true,
			expectComments:  true,
			expectedStatus:  map[int]string{1: "Done", 2: "", 3: ""},
		},
		{
			name:            "status failure degrades to blank",
			opts:            FetchOptions{IncludeStatus: true, ProjectNumber: 2},
			statuses:        map[int]string{3: "In Progress"},
			statusError:     github.NewAPIError("GraphQL errors"),
			expectStatusRun: true,
			expectedStatus:  map[int]string{1: "", 2: "", 3: "In Progress"},
		},
		{
			name:           "issues only",
			opts:           FetchOptions{},
			statuses:       map[int]string{1: "Done"},
			expectedStatus: map[int]string{1: "", 2: "", 3: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &github.MockClient{
				Issues: github.CreateTestIssues(3),
				Comments: map[int][]models.Comment{
					1: github.CreateTestComments(1, 2),
					3: github.CreateTestComments(3, 1),
				},
				Statuses:    tt.statuses,
				StatusError: tt.statusError,
			}
			service := newTestService(client, 1)

			issues, err := service.FetchIssues(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(issues) != 3 {
				t.Fatalf("Expected 3 issues, got %d", len(issues))
			}

			if client.CacheProjectStatusesCalled != tt.expectStatusRun {
				t.Errorf("CacheProjectStatusesCalled = %v, want %v", client.CacheProjectStatusesCalled, tt.expectStatusRun)
			}
			if tt.expectStatusRun && (client.LastOrg != "acme" || client.LastProjectNumber != 2) {
				t.Errorf("status pass ran for %s/%d, want acme/2", client.LastOrg, client.LastProjectNumber)
			}

			for _, issue := range issues {
				if issue.ProjectStatus != tt.expectedStatus[issue.Number] {
					t.Errorf("issue #%d status = %q, want %q", issue.Number, issue.ProjectStatus, tt.expectedStatus[issue.Number])
				}
			}

			if !tt.expectComments {
				if client.CommentCallCount() != 0 {
					t.Errorf("Expected no comment fetches, got %d", client.CommentCallCount())
				}
				return
			}
			if len(issues[0].Comments) != 2 || len(issues[2].Comments) != 1 {
				t.Errorf("Unexpected comments: #1=%d #3=%d", len(issues[0].Comments), len(issues[2].Comments))
			}
			if issues[1].Comments == nil || len(issues[1].Comments) != 0 {
				t.Errorf("Expected an empty comment list for #2, got %v", issues[1].Comments)
			}
		})
	}
}

func TestExportService_FetchIssuesPropagatesListingFailure(t *testing.T) {
	client := &github.MockClient{IssuesError: github.NewAPIError("404 Not Found")}
	service := newTestService(client, 1)

	_, err := service.FetchIssues(context.Background(), FetchOptions{IncludeComments: true})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if !strings.Contains(err.Error(), "failed to fetch issues for acme/widgets") {
		t.Errorf("Error %q should name the repository", err.Error())
	}
	if client.CommentCallCount() != 0 {
		t.Errorf("Expected no comment fetches after a listing failure")
	}
}

func TestExportService_FetchIssuesRejectsInvalidFilter(t *testing.T) {
	client := &github.MockClient{}
	service := newTestService(client, 1)

	_, err := service.FetchIssues(context.Background(), FetchOptions{Filter: models.IssueFilter{State: "merged"}})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if client.FetchIssuesCalled {
		t.Errorf("Expected no API call for an invalid filter")
	}
}

func TestExportService_FetchIssuesPassesFilter(t *testing.T) {
	client := &github.MockClient{Issues: github.CreateTestIssues(1)}
	service := newTestService(client, 1)

	filter := models.IssueFilter{State: "open", Labels: []string{"bug"}}
	if _, err := service.FetchIssues(context.Background(), FetchOptions{Filter: filter}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(client.LastFilter, filter) {
		t.Errorf("filter = %+v, want %+v", client.LastFilter, filter)
	}
	if client.LastOwner != "acme" || client.LastRepo != "widgets" {
		t.Errorf("repository = %s/%s, want acme/widgets", client.LastOwner, client.LastRepo)
	}
}

func TestCommentLoaders_IsolateFailures(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		wantType    string
	}{
		{name: "sequential", concurrency: 1, wantType: "*service.SequentialLoader"},
		{name: "concurrent", concurrency: 2, wantType: "*service.ConcurrentLoader"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &github.MockClient{
				Comments: map[int][]models.Comment{
					1: github.CreateTestComments(1, 1),
					3: github.CreateTestComments(3, 2),
				},
				CommentErrors: map[int]error{2: github.NewNetworkError()},
			}
			logger := slog.New(slog.DiscardHandler)
			loader := NewCommentLoader(client, tt.concurrency, logger)
			if got := reflect.TypeOf(loader).String(); got != tt.wantType {
				t.Errorf("loader type = %s, want %s", got, tt.wantType)
			}

			repo := &github.MockRepository{Owner: "acme", Name: "widgets"}
			got := loader.LoadComments(context.Background(), repo, []int{1, 2, 3})

			keys := make([]int, 0, len(got))
			for k := range got {
				keys = append(keys, k)
			}
			sort.Ints(keys)
			if !reflect.DeepEqual(keys, []int{1, 2, 3}) {
				t.Errorf("result keys = %v, want [1 2 3]", keys)
			}
			if len(got[1]) != 1 || len(got[3]) != 2 {
				t.Errorf("Unexpected comment counts: #1=%d #3=%d", len(got[1]), len(got[3]))
			}
			if got[2] == nil || len(got[2]) != 0 {
				t.Errorf("Expected an empty list for the failing issue, got %v", got[2])
			}
			if client.CommentCallCount() != 3 {
				t.Errorf("Expected 3 comment fetches, got %d", client.CommentCallCount())
			}
		})
	}
}

func TestExportService_ExportIssues(t *testing.T) {
	client := &github.MockClient{
		Issues:   github.CreateTestIssues(2),
		Statuses: map[int]string{2: "Todo"},
	}
	service := newTestService(client, 2)
	output := filepath.Join(t.TempDir(), "issues.json")

	result, err := service.ExportIssues(context.Background(),
		FetchOptions{IncludeStatus: true, ProjectNumber: 2},
		output, []export.Field{export.FieldIssueNumber, export.FieldProjectColumn})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Issues != 2 || result.Format != export.FormatJSON || result.Repository != "acme/widgets" {
		t.Errorf("Unexpected result: %+v", result)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Repository string              `json:"repository"`
		Issues     []map[string]string `json:"issues"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Repository != "acme/widgets" || len(doc.Issues) != 2 {
		t.Fatalf("Unexpected document: %+v", doc)
	}
	if doc.Issues[1]["Project Column"] != "Todo" || doc.Issues[0]["Project Column"] != "" {
		t.Errorf("Unexpected project columns: %v", doc.Issues)
	}
}

func TestExportService_ExportIssuesSkipsWriteOnFetchFailure(t *testing.T) {
	client := &github.MockClient{IssuesError: github.NewNetworkError()}
	service := newTestService(client, 1)
	output := filepath.Join(t.TempDir(), "issues.csv")

	if _, err := service.ExportIssues(context.Background(), FetchOptions{}, output, nil); err == nil {
		t.Fatal("Expected error but got none")
	}
	if export.Exists(output) {
		t.Error("Output should not be written when fetching fails")
	}
}

// cancellingSource cancels the run at a chosen stage, like Ctrl-C mid-export
type cancellingSource struct {
	*github.MockClient
	cancel        context.CancelFunc
	afterStatuses bool
}

func (s *cancellingSource) CacheProjectStatuses(ctx context.Context, org string, projectNumber int, cache *github.StatusCache) error {
	err := s.MockClient.CacheProjectStatuses(ctx, org, projectNumber, cache)
	if s.afterStatuses {
		s.cancel()
	}
	return err
}

func (s *cancellingSource) FetchIssues(ctx context.Context, owner, repo string, filter models.IssueFilter) ([]models.Issue, error) {
	issues, err := s.MockClient.FetchIssues(ctx, owner, repo, filter)
	if !s.afterStatuses {
		s.cancel()
	}
	return issues, err
}

func (s *cancellingSource) FetchComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MockClient.FetchComments(ctx, owner, repo, number)
}

func TestExportService_ExportIssuesStopsWhenCancelled(t *testing.T) {
	tests := []struct {
		name          string
		afterStatuses bool
		opts          FetchOptions
	}{
		{
			name: "cancelled before comments",
			opts: FetchOptions{IncludeComments: true},
		},
		{
			name:          "cancelled while caching statuses",
			afterStatuses: true,
			opts:          FetchOptions{IncludeStatus: true, ProjectNumber: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			source := &cancellingSource{
				MockClient: &github.MockClient{
					Issues:   github.CreateTestIssues(3),
					Comments: map[int][]models.Comment{1: github.CreateTestComments(1, 1)},
				},
				cancel:        cancel,
				afterStatuses: tt.afterStatuses,
			}
			logger := slog.New(slog.DiscardHandler)
			repo := &github.MockRepository{Owner: "acme", Name: "widgets"}
			service := NewExportService(source, repo, NewCommentLoader(source, 5, logger), logger)

			output := filepath.Join(t.TempDir(), "issues.csv")
			if err := os.WriteFile(output, []byte("previous export"), 0o644); err != nil {
				t.Fatal(err)
			}

			result, err := service.ExportIssues(ctx, tt.opts, output, nil)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Expected context.Canceled, got result=%+v err=%v", result, err)
			}
			data, err := os.ReadFile(output)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != "previous export" {
				t.Errorf("Existing export should be left untouched, got %q", data)
			}
		})
	}
}

// inFlightSource records the peak number of concurrent comment fetches
type inFlightSource struct {
	*github.MockClient
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (s *inFlightSource) FetchComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return github.CreateTestComments(number, 1), nil
}

func TestConcurrentLoader_BoundsInFlightRequests(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{name: "limit 2", limit: 2},
		{name: "limit 3", limit: 3},
		{name: "limit 5", limit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &inFlightSource{MockClient: &github.MockClient{}}
			loader := NewCommentLoader(source, tt.limit, slog.New(slog.DiscardHandler))

			numbers := make([]int, 12)
			for i := range numbers {
				numbers[i] = i + 1
			}
			repo := &github.MockRepository{Owner: "acme", Name: "widgets"}
			got := loader.LoadComments(context.Background(), repo, numbers)

			if len(got) != len(numbers) || source.calls.Load() != int32(len(numbers)) {
				t.Fatalf("Expected %d results and calls, got %d results, %d calls", len(numbers), len(got), source.calls.Load())
			}
			if source.peak > tt.limit {
				t.Errorf("Peak in-flight requests = %d, want <= %d", source.peak, tt.limit)
			}
			if source.peak < 2 {
				t.Errorf("Peak in-flight requests = %d, expected requests to overlap", source.peak)
			}
		})
	}
}
