package export

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	whitespace  = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// Sanitize flattens free text into a single clean line: entities decoded,
// tags removed, line breaks and runs of whitespace collapsed to one space
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	text = html.UnescapeString(stripPolicy.Sanitize(text))
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
