package conversation

import (
	"regexp"
	"strings"
)

const defaultConfirmKeyword = "ok"

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText flattens newlines and tabs and collapses whitespace runs.
func CleanText(text string) string {
	text = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(text)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// KeywordDetector decides whether an inbound message is a confirmation.
// Only an exact (case-insensitive) match of the cleaned text counts; "ok,
// thanks" is a new order request.
type KeywordDetector struct {
	keyword string
}

func NewKeywordDetector(keyword string) *KeywordDetector {
	keyword = strings.ToLower(CleanText(keyword))
	if keyword == "" {
		keyword = defaultConfirmKeyword
	}
	return &KeywordDetector{keyword: keyword}
}

func (d *KeywordDetector) IsConfirmation(text string) bool {
	return strings.ToLower(CleanText(text)) == d.keyword
}

// Keyword returns the normalized keyword.
func (d *KeywordDetector) Keyword() string {
	return d.keyword
}
