package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

// Field is an export column
type Field string

const (
	FieldIssueNumber   Field = "Issue Number"
	FieldTitle         Field = "Title"
	FieldState         Field = "State"
	FieldCreatedDate   Field = "Created Date"
	FieldClosedDate    Field = "Closed Date"
	FieldUpdatedDate   Field = "Updated Date"
	FieldLabels        Field = "Labels"
	FieldComments      Field = "Comments"
	FieldProjectColumn Field = "Project Column"
	FieldAssignees     Field = "Assignees"
	FieldMilestone     Field = "Milestone"
	FieldURL           Field = "URL"
	FieldBody          Field = "Body"
)

// AllFields lists every supported column
var AllFields = []Field{
	FieldIssueNumber,
	FieldTitle,
	FieldState,
	FieldCreatedDate,
	FieldClosedDate,
	FieldUpdatedDate,
	FieldLabels,
	FieldComments,
	FieldProjectColumn,
	FieldAssignees,
	FieldMilestone,
	FieldURL,
	FieldBody,
}

// DefaultFields is used when no field selection is given
var DefaultFields = []Field{
	FieldIssueNumber,
	FieldTitle,
	FieldState,
	FieldCreatedDate,
	FieldClosedDate,
	FieldLabels,
	FieldComments,
	FieldProjectColumn,
}

// ParseFields resolves field names case-insensitively, keeping the given order
func ParseFields(names []string) ([]Field, error) {
	if len(names) == 0 {
		return DefaultFields, nil
	}
	fields := make([]Field, 0, len(names))
	seen := make(map[Field]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, ok := lookupField(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return DefaultFields, nil
	}
	return fields, nil
}

func lookupField(name string) (Field, bool) {
	for _, f := range AllFields {
		if strings.EqualFold(string(f), name) {
			return f, true
		}
	}
	return "", false
}

// Value renders one field of an issue as text
func Value(issue models.Issue, f Field) string {
	switch f {
	case FieldIssueNumber:
		return strconv.Itoa(issue.Number)
	case FieldTitle:
		return Sanitize(issue.Title)
	case FieldState:
		return issue.State
	case FieldCreatedDate:
		return formatDate(issue.CreatedAt)
	case FieldClosedDate:
		if issue.ClosedAt == nil {
			return ""
		}
		return formatDate(*issue.ClosedAt)
	case FieldUpdatedDate:
		return formatDate(issue.UpdatedAt)
	case FieldLabels:
		return strings.Join(issue.LabelNames(), ", ")
	case FieldComments:
		return Sanitize(renderComments(issue.Comments))
	case FieldProjectColumn:
		return issue.ProjectStatus
	case FieldAssignees:
		return strings.Join(issue.AssigneeLogins(), ", ")
	case FieldMilestone:
		return issue.MilestoneTitle()
	case FieldURL:
		return issue.HTMLURL
	case FieldBody:
		return Sanitize(issue.BodyText())
	default:
		return ""
	}
}

// Row renders the selected fields of an issue
func Row(issue models.Issue, fields []Field) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = Value(issue, f)
	}
	return row
}

// Header returns the column names
func Header(fields []Field) []string {
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = string(f)
	}
	return header
}

func renderComments(comments []models.Comment) string {
	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		lines = append(lines, c.User.Login+": "+c.Body)
	}
	return strings.Join(lines, "\n")
}
