package recommend

import (
	"fmt"
	"strings"
)

// AudioPolicy maps one audio-event label to a recommendation. Sets are tested
// in priority order (transit, outdoor, indoor) and the first hit wins, so a
// label naming both a train and music routes to transit.
type AudioPolicy struct {
	rules Ruleset
}

func NewAudioPolicy(rules Ruleset) *AudioPolicy {
	return &AudioPolicy{rules: rules.normalized()}
}

func (p *AudioPolicy) Recommend(label string) Recommendation {
	s := normalize(label)
	switch {
	case containsAny(s, p.rules.Transit):
		return OutlineOnly
	case containsAny(s, p.rules.Outdoor):
		return AudioPush
	case containsAny(s, p.rules.Indoor):
		return FullDetail
	}
	return FullDetail
}

// ImageVariant selects how a ranked keyword list is reduced.
type ImageVariant string

const (
	// ImageOverwrite short-circuits on transit; otherwise the last outdoor
	// or indoor match wins. Defaults to FullDetail.
	ImageOverwrite ImageVariant = "overwrite"
	// ImageFirstMatch returns on the first keyword hitting transit, indoor or
	// outdoor, checked in that order per keyword. Defaults to OutlineOnly.
	ImageFirstMatch ImageVariant = "first_match"
)

func ParseImageVariant(v string) (ImageVariant, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "overwrite", "a":
		return ImageOverwrite, nil
	case "first_match", "first-match", "b":
		return ImageFirstMatch, nil
	}
	return "", fmt.Errorf("unknown image policy variant %q", v)
}

// DefaultFor is the recommendation a variant returns when nothing matches.
func (v ImageVariant) DefaultFor() Recommendation {
	if v == ImageFirstMatch {
		return OutlineOnly
	}
	return FullDetail
}

func (v ImageVariant) defaultRules() Ruleset {
	if v == ImageFirstMatch {
		return ImageRulesExtended()
	}
	return ImageRulesCompact()
}

type ImagePolicyConfig struct {
	Variant ImageVariant
	// Rules override the variant's built-in table set by set.
	Rules Ruleset
	// Default replaces the variant's no-match result when set.
	Default Recommendation
}

type ImagePolicy struct {
	variant  ImageVariant
	rules    Ruleset
	fallback Recommendation
}

func NewImagePolicy(cfg ImagePolicyConfig) (*ImagePolicy, error) {
	variant := cfg.Variant
	if variant == "" {
		variant = ImageOverwrite
	}
	if variant != ImageOverwrite && variant != ImageFirstMatch {
		return nil, fmt.Errorf("unknown image policy variant %q", variant)
	}
	fallback := cfg.Default
	if fallback == "" {
		fallback = variant.DefaultFor()
	}
	if !fallback.Valid() {
		return nil, fmt.Errorf("invalid image policy default %q", fallback)
	}
	return &ImagePolicy{
		variant:  variant,
		rules:    variant.defaultRules().Override(cfg.Rules).normalized(),
		fallback: fallback,
	}, nil
}

func (p *ImagePolicy) Variant() ImageVariant { return p.variant }

func (p *ImagePolicy) Default() Recommendation { return p.fallback }

func (p *ImagePolicy) Recommend(keywords []string) Recommendation {
	if p.variant == ImageFirstMatch {
		return p.firstMatch(keywords)
	}
	return p.overwrite(keywords)
}

func (p *ImagePolicy) overwrite(keywords []string) Recommendation {
	rec := p.fallback
	for _, kw := range keywords {
		s := normalize(kw)
		if containsAny(s, p.rules.Transit) {
			return OutlineOnly
		}
		if containsAny(s, p.rules.Outdoor) {
			rec = AudioPush
		}
		if containsAny(s, p.rules.Indoor) {
			rec = FullDetail
		}
	}
	return rec
}

func (p *ImagePolicy) firstMatch(keywords []string) Recommendation {
	for _, kw := range keywords {
		s := normalize(kw)
		if containsAny(s, p.rules.Transit) {
			return OutlineOnly
		}
		if containsAny(s, p.rules.Indoor) {
			return FullDetail
		}
		if containsAny(s, p.rules.Outdoor) {
			return AudioPush
		}
	}
	return p.fallback
}
