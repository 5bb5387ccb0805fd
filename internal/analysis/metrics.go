package analysis

import (
	"sort"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

// CloseStats describes time-to-close in whole days
type CloseStats struct {
	MeanDays   float64 `json:"mean_days"`
	MedianDays float64 `json:"median_days"`
	MinDays    int     `json:"min_days"`
	MaxDays    int     `json:"max_days"`
}

// Metrics is the result of AnalyzeMetrics
type Metrics struct {
	MonthlyIssueCounts map[string]int `json:"monthly_issue_counts"`
	TimeToClose        *CloseStats    `json:"time_to_close,omitempty"`
	WithComments       int            `json:"with_comments"`
	WithoutComments    int            `json:"without_comments"`
}

// AnalyzeMetrics computes monthly volume, time-to-close and comment coverage.
// TimeToClose is nil when no issue has a close date.
func AnalyzeMetrics(issues []models.Issue) Metrics {
	m := Metrics{MonthlyIssueCounts: make(map[string]int)}

	var days []int
	for _, issue := range issues {
		if !issue.CreatedAt.IsZero() {
			m.MonthlyIssueCounts[issue.CreatedAt.UTC().Format("2006-01")]++
		}
		if issue.ClosedAt != nil && !issue.CreatedAt.IsZero() {
			days = append(days, daysBetween(issue.CreatedAt, *issue.ClosedAt))
		}
		if len(issue.Comments) > 0 {
			m.WithComments++
		} else {
			m.WithoutComments++
		}
	}

	if len(days) > 0 {
		m.TimeToClose = closeStats(days)
	}
	return m
}

// daysBetween counts calendar days between the UTC dates of from and to
func daysBetween(from, to time.Time) int {
	day := func(t time.Time) time.Time {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(day(to).Sub(day(from)).Hours() / 24)
}

func closeStats(days []int) *CloseStats {
	sort.Ints(days)
	sum := 0
	for _, d := range days {
		sum += d
	}
	n := len(days)
	median := float64(days[n/2])
	if n%2 == 0 {
		median = float64(days[n/2-1]+days[n/2]) / 2
	}
	return &CloseStats{
		MeanDays:   float64(sum) / float64(n),
		MedianDays: median,
		MinDays:    days[0],
		MaxDays:    days[n-1],
	}
}

// Months returns the keys of MonthlyIssueCounts in chronological order
func (m Metrics) Months() []string {
	months := make([]string, 0, len(m.MonthlyIssueCounts))
	for k := range m.MonthlyIssueCounts {
		months = append(months, k)
	}
	sort.Strings(months)
	return months
}
