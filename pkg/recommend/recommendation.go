// Package recommend maps resolved scene labels to coarse UI-mode
// recommendations.
package recommend

import (
	"fmt"
	"strings"
)

// Recommendation is one of three UI-mode directives for the client.
type Recommendation string

const (
	OutlineOnly Recommendation = "OUTLINE_ONLY"
	AudioPush   Recommendation = "AUDIO_PUSH"
	FullDetail  Recommendation = "FULL_DETAIL"
)

var texts = map[Recommendation]string{
	OutlineOnly: "推荐：只展示大纲",
	AudioPush:   "推荐：推送音频界面",
	FullDetail:  "推荐：详细完整界面",
}

func (r Recommendation) String() string { return string(r) }

// Text returns the string rendered to clients.
func (r Recommendation) Text() string {
	if t, ok := texts[r]; ok {
		return t
	}
	return string(r)
}

// Valid reports whether r is one of the known directives.
func (r Recommendation) Valid() bool {
	_, ok := texts[r]
	return ok
}

// Parse accepts a code ("outline_only") or the rendered text.
func Parse(v string) (Recommendation, error) {
	s := strings.TrimSpace(v)
	code := Recommendation(strings.ToUpper(s))
	if code.Valid() {
		return code, nil
	}
	for r, text := range texts {
		if s == text {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown recommendation %q", v)
}
