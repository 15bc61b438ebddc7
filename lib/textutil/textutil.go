package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases, trims and collapses inner whitespace. Both the
// cross-source matcher and identity-key derivation go through this so that
// "Senior  SDE " and "senior sde" compare equal.
func NormalizeKey(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \n\t")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// MatchKeyword reports whether any of the lowercased keywords occurs in
// text as a substring. Keywords carrying leading/trailing spaces match
// literally, which lets rule tables avoid false hits like "ai" in "aid".
func MatchKeyword(text string, keywords []string) bool {
	text = " " + NormalizeKey(text) + " "
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
