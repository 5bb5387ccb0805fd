package analysis

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ryo246912/gh-issues-export/internal/models"
)

const (
	// AllTime is reported when no time period was requested
	AllTime = "all time"

	productLabelPrefix = "product:"
	unknownProduct     = "unknown"
	trendingLimit      = 10
)

var (
	nonWord   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	stopWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "in": true, "on": true,
		"at": true, "to": true, "for": true, "with": true, "is": true, "are": true,
	}
)

// SummaryOptions selects the optional breakdowns
type SummaryOptions struct {
	ByProduct  bool
	ByTag      bool
	TimePeriod string
}

// WordCount is one trending title word
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Summary is the result of Summarize
type Summary struct {
	TotalIssues    int            `json:"total_issues"`
	OpenIssues     int            `json:"open_issues"`
	ClosedIssues   int            `json:"closed_issues"`
	TimePeriod     string         `json:"time_period"`
	ByProduct      map[string]int `json:"by_product,omitempty"`
	ByTag          map[string]int `json:"by_tag,omitempty"`
	TrendingThemes []WordCount    `json:"trending_themes"`
}

// PeriodDuration maps a period code to its window; unknown codes mean one month
func PeriodDuration(period string) time.Duration {
	day := 24 * time.Hour
	switch period {
	case "1w":
		return 7 * day
	case "1m":
		return 30 * day
	case "3m":
		return 90 * day
	case "1y":
		return 365 * day
	default:
		return 30 * day
	}
}

// Summarize counts issues created within the period, with optional product and tag breakdowns
func Summarize(issues []models.Issue, opts SummaryOptions, now time.Time) Summary {
	if opts.TimePeriod != "" {
		start := now.Add(-PeriodDuration(opts.TimePeriod))
		filtered := make([]models.Issue, 0, len(issues))
		for _, issue := range issues {
			if !issue.CreatedAt.Before(start) {
				filtered = append(filtered, issue)
			}
		}
		issues = filtered
	}

	s := Summary{
		TotalIssues: len(issues),
		TimePeriod:  opts.TimePeriod,
	}
	if s.TimePeriod == "" {
		s.TimePeriod = AllTime
	}
	for _, issue := range issues {
		switch issue.State {
		case "open":
			s.OpenIssues++
		case "closed":
			s.ClosedIssues++
		}
	}

	if opts.ByProduct {
		s.ByProduct = make(map[string]int)
		for _, issue := range issues {
			s.ByProduct[productOf(issue)]++
		}
	}
	if opts.ByTag {
		s.ByTag = make(map[string]int)
		for _, issue := range issues {
			for _, name := range issue.LabelNames() {
				s.ByTag[name]++
			}
		}
	}

	s.TrendingThemes = trendingWords(issues, trendingLimit)
	return s
}

func productOf(issue models.Issue) string {
	for _, name := range issue.LabelNames() {
		name = strings.TrimSpace(name)
		if product, ok := strings.CutPrefix(name, productLabelPrefix); ok {
			return product
		}
	}
	return unknownProduct
}

func trendingWords(issues []models.Issue, limit int) []WordCount {
	counts := make(map[string]int)
	for _, issue := range issues {
		clean := nonWord.ReplaceAllString(strings.ToLower(issue.Title), "")
		for _, word := range strings.Fields(clean) {
			if stopWords[word] || len([]rune(word)) <= 2 {
				continue
			}
			counts[word]++
		}
	}

	words := make([]WordCount, 0, len(counts))
	for w, c := range counts {
		words = append(words, WordCount{Word: w, Count: c})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
