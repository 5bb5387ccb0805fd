package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// IssueFilter narrows the issues endpoint query
type IssueFilter struct {
	State     string
	Labels    []string
	Since     *time.Time
	Assignee  string
	Creator   string
	Mentioned string
	Milestone string
}

// ParseSince accepts RFC3339 timestamps or plain YYYY-MM-DD dates
func ParseSince(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date format: %s", s)
	}
	return &t, nil
}

// Validate checks the filter values the API would reject
func (f IssueFilter) Validate() error {
	switch f.State {
	case "", "all", "open", "closed":
		return nil
	default:
		return fmt.Errorf("invalid state %q: must be open, closed or all", f.State)
	}
}

// Values converts the filter to query parameters for the issues endpoint
func (f IssueFilter) Values() url.Values {
	v := url.Values{}
	state := f.State
	if state == "" {
		state = "all"
	}
	v.Set("state", state)
	if len(f.Labels) > 0 {
		v.Set("labels", strings.Join(f.Labels, ","))
	}
	if f.Since != nil {
		v.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Assignee != "" {
		v.Set("assignee", f.Assignee)
	}
	if f.Creator != "" {
		v.Set("creator", f.Creator)
	}
	if f.Mentioned != "" {
		v.Set("mentioned", f.Mentioned)
	}
	if f.Milestone != "" {
		v.Set("milestone", f.Milestone)
	}
	return v
}
