package github

import (
	"context"
	"errors"
	"fmt"
	"sync"

	graphql "github.com/cli/shurcooL-graphql"
	"github.com/ryo246912/gh-issues-export/internal/models"
)

// StatusFieldName is the project field holding the board column
const StatusFieldName = "Status"

// StatusCache maps issue numbers to their project board status.
// It is filled once per run and only read afterwards.
type StatusCache struct {
	mu       sync.RWMutex
	statuses map[int]string
}

func NewStatusCache() *StatusCache {
	return &StatusCache{statuses: make(map[int]string)}
}

// Set records a status; a later write for the same issue wins
func (c *StatusCache) Set(number int, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[number] = status
}

// Lookup returns the raw cached value
func (c *StatusCache) Lookup(number int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.statuses[number]
	return status, ok
}

// StatusFor returns the usable status of an issue, or "" when it was never
// seen or has no status set
func (c *StatusCache) StatusFor(number int) string {
	if c == nil {
		return ""
	}
	status, ok := c.Lookup(number)
	if !ok || status == models.NoStatusSet {
		return ""
	}
	return status
}

// Len returns the number of cached issues
func (c *StatusCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.statuses)
}

type projectItem struct {
	Content struct {
		Issue struct {
			Number int
		} `graphql:"... on Issue"`
	}
	FieldValues struct {
		Nodes []struct {
			SingleSelect struct {
				Name  string
				Field struct {
					SingleSelectField struct {
						Name string
					} `graphql:"... on ProjectV2SingleSelectField"`
				}
			} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
		}
	} `graphql:"fieldValues(first: 20)"`
}

type projectItemsQuery struct {
	Organization struct {
		ProjectV2 struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool
					EndCursor   string
				}
				Nodes []projectItem
			} `graphql:"items(first: 100, after: $cursor)"`
		} `graphql:"projectV2(number: $number)"`
	} `graphql:"organization(login: $org)"`
}

// statusOf picks the Status single-select value of an item
func statusOf(item projectItem) string {
	for _, v := range item.FieldValues.Nodes {
		if v.SingleSelect.Field.SingleSelectField.Name == StatusFieldName {
			return v.SingleSelect.Name
		}
	}
	return models.NoStatusSet
}

// CacheProjectStatuses scans every item of the organization's project board and
// records issue number -> status in cache. On failure the pass stops and the
// cache keeps whatever earlier pages recorded.
func (c *Client) CacheProjectStatuses(ctx context.Context, org string, projectNumber int, cache *StatusCache) error {
	if projectNumber <= 0 {
		return fmt.Errorf("invalid project number: %d", projectNumber)
	}

	variables := map[string]interface{}{
		"org":    graphql.String(org),
		"number": graphql.Int(projectNumber),
		"cursor": (*graphql.String)(nil),
	}

	pages := 0
	for {
		var q projectItemsQuery
		if err := c.gql.Query(ctx, &q, variables); err != nil {
			var gqlErrs graphql.Errors
			if errors.As(err, &gqlErrs) {
				return fmt.Errorf("GraphQL errors while caching statuses: %w", err)
			}
			return fmt.Errorf("failed to fetch project statuses: %w", err)
		}
		pages++

		items := q.Organization.ProjectV2.Items
		for _, item := range items.Nodes {
			number := item.Content.Issue.Number
			if number == 0 {
				continue
			}
			cache.Set(number, statusOf(item))
		}

		if !items.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = graphql.String(items.PageInfo.EndCursor)
	}

	c.log.Debug("Cached project statuses", "org", org, "project", projectNumber, "pages", pages, "issues", cache.Len())
	return nil
}
