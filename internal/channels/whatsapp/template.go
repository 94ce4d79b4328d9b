package whatsapp

import (
	"strings"
	"unicode/utf8"
)

const (
	templateParamCount = 3
	templateParamLimit = 30
)

// SplitTemplateParams breaks text into the three body parameters of the
// notification template, filling each up to 30 characters on word
// boundaries. Words that do not fit once the third parameter is full are
// dropped, and a single word longer than the limit is cut.
func SplitTemplateParams(text string) [templateParamCount]string {
	var parts [templateParamCount]string
	current := 0

	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(parts[current]+word) <= templateParamLimit {
			parts[current] += word + " "
			continue
		}
		if current == templateParamCount-1 {
			break
		}
		current++
		parts[current] = word + " "
	}

	for i, part := range parts {
		parts[i] = truncateRunes(strings.TrimSpace(part), templateParamLimit)
	}
	return parts
}

// FitsTemplate reports whether text goes through SplitTemplateParams without
// losing words, characters or line breaks.
func FitsTemplate(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, "\n\r") {
		return false
	}
	parts := SplitTemplateParams(text)
	return strings.Join(strings.Fields(strings.Join(parts[:], " ")), " ") ==
		strings.Join(strings.Fields(text), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
