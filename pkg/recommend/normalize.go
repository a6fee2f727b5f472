package recommend

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// normalize folds full-width forms and lower-cases s. A Caser is stateful,
// so one is built per call.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return cases.Lower(language.Und).String(width.Fold.String(s))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if n := normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
