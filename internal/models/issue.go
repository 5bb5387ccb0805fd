package models

import (
	"encoding/json"
	"time"
)

// NoStatusSet is the status recorded for a project item whose Status field is unset
const NoStatusSet = "No status set"

// User represents a GitHub user
type User struct {
	Login string `json:"login"`
	Type  string `json:"type,omitempty"`
}

// Label represents an issue label
type Label struct {
	Name string `json:"name"`
}

// Milestone represents an issue milestone
type Milestone struct {
	Title string `json:"title"`
}

// Comment represents an issue comment
type Comment struct {
	ID        int64     `json:"id"`
	User      User      `json:"user"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue represents an issue as returned by the REST issues endpoint.
// Comments and ProjectStatus are attached after the fetch.
type Issue struct {
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	State       string           `json:"state"`
	CreatedAt   time.Time        `json:"created_at"`
	ClosedAt    *time.Time       `json:"closed_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Labels      []Label          `json:"labels"`
	Assignees   []User           `json:"assignees"`
	Milestone   *Milestone       `json:"milestone"`
	HTMLURL     string           `json:"html_url"`
	Body        *string          `json:"body"`
	User        User             `json:"user"`
	PullRequest *json.RawMessage `json:"pull_request,omitempty"`

	Comments      []Comment `json:"comments_data,omitempty"`
	ProjectStatus string    `json:"project_column,omitempty"`
}

// IsPullRequest reports whether the issues endpoint returned a pull request
func (i Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// LabelNames returns the label names in server order
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// AssigneeLogins returns the assignee logins in server order
func (i Issue) AssigneeLogins() []string {
	logins := make([]string, 0, len(i.Assignees))
	for _, a := range i.Assignees {
		logins = append(logins, a.Login)
	}
	return logins
}

// BodyText returns the body or an empty string
func (i Issue) BodyText() string {
	if i.Body == nil {
		return ""
	}
	return *i.Body
}

// MilestoneTitle returns the milestone title or an empty string
func (i Issue) MilestoneTitle() string {
	if i.Milestone == nil {
		return ""
	}
	return i.Milestone.Title
}

// IsClosed reports whether the issue is closed
func (i Issue) IsClosed() bool {
	return i.State == "closed"
}
