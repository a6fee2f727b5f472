package configutil

import (
	"sort"
	"strings"
)

// Schema defines required and optional keys for a settings map. Secrets
// name the keys masked by Redacted.
type Schema struct {
	Required     []string
	Optional     []string
	Secrets      []string
	AllowUnknown bool
}

// Redacted returns a copy of input safe to log.
func (s Schema) Redacted(input map[string]any) map[string]any {
	secret := make(map[string]struct{}, len(s.Secrets))
	for _, k := range s.Secrets {
		secret[normalizeKey(k)] = struct{}{}
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if _, ok := secret[normalizeKey(k)]; ok && !isEmptyValue(v) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

// SettingsError lists every problem found in a settings map at once.
type SettingsError struct {
	Missing []string
	Unknown []string
}

func (e *SettingsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

func keySet(keys ...[]string) map[string]string {
	out := make(map[string]string)
	for _, list := range keys {
		for _, k := range list {
			out[normalizeKey(k)] = k
		}
	}
	return out
}

// ValidateSettings checks input against schema. Keys match regardless of
// case, underscores and hyphens; a blank string counts as missing. The
// returned error is a *SettingsError.
func ValidateSettings(input map[string]any, schema Schema) error {
	required := keySet(schema.Required)
	allowed := keySet(schema.Required, schema.Optional, schema.Secrets)

	present := make(map[string]bool, len(input))
	var serr SettingsError
	for k, v := range input {
		nk := normalizeKey(k)
		if _, ok := allowed[nk]; !ok && !schema.AllowUnknown {
			serr.Unknown = append(serr.Unknown, k)
		}
		present[nk] = !isEmptyValue(v)
	}
	for nk, name := range required {
		if !present[nk] {
			serr.Missing = append(serr.Missing, name)
		}
	}
	if len(serr.Missing) == 0 && len(serr.Unknown) == 0 {
		return nil
	}
	sort.Strings(serr.Missing)
	sort.Strings(serr.Unknown)
	return &serr
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
