package insight

import (
	"strings"
	"unicode"
)

// TitleCase upper-cases every letter that starts a word. A word starts after any rune that is
// not a letter, digit or underscore, so "what's" becomes "What'S".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevWord := false
	for _, r := range s {
		isWord := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = isWord
	}
	return b.String()
}

func replaceUnderscores(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// DedupeStrings trims, drops empties and removes case-insensitive duplicates, keeping first spelling.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
