package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var (
	queryRe  = regexp.MustCompile(`(?i)\b(access_token|client_secret|client_id|api_key)=([^&\s"']+)`)
	bearerRe = regexp.MustCompile(`(?i)\b(bearer)\s+[a-z0-9._\-]+`)
)

// SetEnabled toggles credential redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text masks credentials embedded in URLs or headers when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := queryRe.ReplaceAllString(in, "$1=[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "$1 [REDACTED]")
	return out
}

// Error is Text applied to err's message; nil yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Text(err.Error())
}
