package github

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

// MockClient implements IssueSource for testing
type MockClient struct {
	mu sync.Mutex

	// Control test behavior
	Issues        []models.Issue
	IssuesError   error
	Comments      map[int][]models.Comment
	CommentErrors map[int]error
	Statuses      map[int]string
	StatusError   error

	// Track method calls
	FetchIssuesCalled          bool
	FetchCommentsCalls         []int
	CacheProjectStatusesCalled bool

	// Store call arguments for verification
	LastOwner         string
	LastRepo          string
	LastFilter        models.IssueFilter
	LastOrg           string
	LastProjectNumber int
}

// FetchIssues mocks the paginated issues call
func (m *MockClient) FetchIssues(ctx context.Context, owner, repo string, filter models.IssueFilter) ([]models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchIssuesCalled = true
	m.LastOwner = owner
	m.LastRepo = repo
	m.LastFilter = filter
	if m.IssuesError != nil {
		return nil, m.IssuesError
	}
	issues := make([]models.Issue, len(m.Issues))
	copy(issues, m.Issues)
	return issues, nil
}

// FetchComments mocks the per-issue comments call
func (m *MockClient) FetchComments(ctx context.Context, owner, repo string, number int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCommentsCalls = append(m.FetchCommentsCalls, number)
	if err := m.CommentErrors[number]; err != nil {
		return nil, err
	}
	return m.Comments[number], nil
}

// CacheProjectStatuses mocks the GraphQL status scan; Statuses are recorded
// before StatusError is returned, like a pass failing on a later page
func (m *MockClient) CacheProjectStatuses(ctx context.Context, org string, projectNumber int, cache *StatusCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheProjectStatusesCalled = true
	m.LastOrg = org
	m.LastProjectNumber = projectNumber
	for number, status := range m.Statuses {
		cache.Set(number, status)
	}
	return m.StatusError
}

// CommentCallCount returns how many comment fetches were made
func (m *MockClient) CommentCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FetchCommentsCalls)
}

// MockRepository implements repository information for testing
type MockRepository struct {
	Owner string
	Name  string
}

func (m *MockRepository) GetOwner() string {
	return m.Owner
}

func (m *MockRepository) GetName() string {
	return m.Name
}

// Helper functions for creating test data
func CreateTestIssues(count int) []models.Issue {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	issues := make([]models.Issue, count)
	for i := 0; i < count; i++ {
		issues[i] = models.Issue{
			Number:    i + 1,
			Title:     fmt.Sprintf("Test issue #%d", i+1),
			State:     "open",
			CreatedAt: base.AddDate(0, 0, i),
			UpdatedAt: base.AddDate(0, 0, i+1),
			HTMLURL:   fmt.Sprintf("https://github.com/owner/repo/issues/%d", i+1),
			User:      models.User{Login: fmt.Sprintf("user%d", i+1)},
		}
	}
	return issues
}

func CreateTestComments(number, count int) []models.Comment {
	comments := make([]models.Comment, count)
	for i := 0; i < count; i++ {
		comments[i] = models.Comment{
			ID:   int64(number*100 + i),
			User: models.User{Login: fmt.Sprintf("commenter%d", i+1)},
			Body: fmt.Sprintf("comment %d on #%d", i+1, number),
		}
	}
	return comments
}

// Error helpers for testing error conditions
func NewAPIError(message string) error {
	return fmt.Errorf("API error: %s", message)
}

func NewNetworkError() error {
	return fmt.Errorf("network connection failed")
}
