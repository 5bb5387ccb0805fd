package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ryo246912/gh-issues-export/internal/analysis"
)

// RenderSummary formats a summary for the terminal
func RenderSummary(repo string, s analysis.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issues in %s (%s)\n\n", repo, s.TimePeriod)
	b.WriteString(Table(
		[]string{"Total", "Open", "Closed"},
		[][]string{{strconv.Itoa(s.TotalIssues), strconv.Itoa(s.OpenIssues), strconv.Itoa(s.ClosedIssues)}},
	))

	if s.ByProduct != nil {
		b.WriteString("\nBy product\n")
		b.WriteString(CountTable("Product", s.ByProduct))
	}
	if s.ByTag != nil {
		b.WriteString("\nBy tag\n")
		b.WriteString(CountTable("Label", s.ByTag))
	}

	if len(s.TrendingThemes) > 0 {
		rows := make([][]string, len(s.TrendingThemes))
		for i, w := range s.TrendingThemes {
			rows[i] = []string{w.Word, strconv.Itoa(w.Count)}
		}
		b.WriteString("\nTrending themes\n")
		b.WriteString(Table([]string{"Word", "Count"}, rows))
	}
	return b.String()
}

// RenderMetrics formats metrics for the terminal
func RenderMetrics(repo string, m analysis.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Metrics for %s\n\n", repo)

	rows := make([][]string, 0, len(m.MonthlyIssueCounts))
	for _, month := range m.Months() {
		rows = append(rows, []string{month, strconv.Itoa(m.MonthlyIssueCounts[month])})
	}
	b.WriteString(Table([]string{"Month", "Issues"}, rows))

	b.WriteString("\nTime to close (days)\n")
	if m.TimeToClose == nil {
		b.WriteString("no closed issues\n")
	} else {
		c := m.TimeToClose
		b.WriteString(Table(
			[]string{"Mean", "Median", "Min", "Max"},
			[][]string{{
				strconv.FormatFloat(c.MeanDays, 'f', 1, 64),
				strconv.FormatFloat(c.MedianDays, 'f', 1, 64),
				strconv.Itoa(c.MinDays),
				strconv.Itoa(c.MaxDays),
			}},
		))
	}

	b.WriteString("\nComments\n")
	b.WriteString(Table(
		[]string{"With", "Without"},
		[][]string{{strconv.Itoa(m.WithComments), strconv.Itoa(m.WithoutComments)}},
	))
	return b.String()
}
