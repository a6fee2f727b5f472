package recommend

import "testing"

func TestAudioPolicyPriority(t *testing.T) {
	tables := map[string]Ruleset{
		"compact":  AudioRulesCompact(),
		"extended": AudioRulesExtended(),
	}
	cases := []struct {
		label string
		want  Recommendation
	}{
		{"subway_station", OutlineOnly},
		{"Train horn", OutlineOnly},
		{"train music", OutlineOnly},
		{"street_traffic_car", AudioPush},
		{"Speech", AudioPush},
		{"MUSIC", AudioPush},
		{"ＢＩＲＤ", AudioPush},
		{"Typing", FullDetail},
		{"Silence", FullDetail},
		{"unknown_sound_42", FullDetail},
		{"", FullDetail},
	}
	for name, rules := range tables {
		p := NewAudioPolicy(rules)
		for _, tc := range cases {
			if name == "extended" && tc.label == "MUSIC" {
				// music is only curated in the compact table.
				continue
			}
			if got := p.Recommend(tc.label); got != tc.want {
				t.Fatalf("%s: Recommend(%q) = %s, want %s", name, tc.label, got, tc.want)
			}
		}
	}
}

func TestAudioTablesDiverge(t *testing.T) {
	label := "Fire engine, fire truck (siren)"
	if got := NewAudioPolicy(AudioRulesCompact()).Recommend(label); got != AudioPush {
		t.Fatalf("compact: expected %s, got %s", AudioPush, got)
	}
	if got := NewAudioPolicy(AudioRulesExtended()).Recommend(label); got != OutlineOnly {
		t.Fatalf("extended: expected %s, got %s", OutlineOnly, got)
	}
	if got := NewAudioPolicy(AudioRulesExtended()).Recommend("Music"); got != FullDetail {
		t.Fatalf("extended: expected %s for music, got %s", FullDetail, got)
	}
}

func TestImagePolicyVariants(t *testing.T) {
	cases := []struct {
		name     string
		keywords []string
		wantA    Recommendation
		wantB    Recommendation
	}{
		{"nil", nil, FullDetail, OutlineOnly},
		{"empty", []string{}, FullDetail, OutlineOnly},
		{"transit then indoor", []string{"地铁站", "客厅"}, OutlineOnly, OutlineOnly},
		{"indoor then transit", []string{"客厅", "地铁站"}, OutlineOnly, FullDetail},
		{"outdoor then indoor", []string{"街道", "客厅"}, FullDetail, AudioPush},
		{"indoor then outdoor", []string{"客厅", "街道"}, AudioPush, FullDetail},
		{"unmatched", []string{"天空", "云"}, FullDetail, OutlineOnly},
		{"outdoor only", []string{"天空", "公园"}, AudioPush, AudioPush},
		{"both sets in one keyword", []string{"家庭公园"}, FullDetail, FullDetail},
	}
	a, err := NewImagePolicy(ImagePolicyConfig{Variant: ImageOverwrite})
	if err != nil {
		t.Fatalf("variant A: %v", err)
	}
	b, err := NewImagePolicy(ImagePolicyConfig{Variant: ImageFirstMatch})
	if err != nil {
		t.Fatalf("variant B: %v", err)
	}
	for _, tc := range cases {
		if got := a.Recommend(tc.keywords); got != tc.wantA {
			t.Fatalf("%s: variant A = %s, want %s", tc.name, got, tc.wantA)
		}
		if got := b.Recommend(tc.keywords); got != tc.wantB {
			t.Fatalf("%s: variant B = %s, want %s", tc.name, got, tc.wantB)
		}
	}
}

func TestImagePolicyConfigurableDefault(t *testing.T) {
	p, err := NewImagePolicy(ImagePolicyConfig{Variant: ImageFirstMatch, Default: FullDetail})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if got := p.Recommend(nil); got != FullDetail {
		t.Fatalf("expected overridden default %s, got %s", FullDetail, got)
	}
	if _, err := NewImagePolicy(ImagePolicyConfig{Default: "SOMETHING"}); err == nil {
		t.Fatalf("expected error for invalid default")
	}
	if _, err := NewImagePolicy(ImagePolicyConfig{Variant: "c"}); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestImagePolicyRuleOverride(t *testing.T) {
	p, err := NewImagePolicy(ImagePolicyConfig{
		Variant: ImageOverwrite,
		Rules:   Ruleset{Outdoor: []string{"海滩"}},
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if got := p.Recommend([]string{"海滩"}); got != AudioPush {
		t.Fatalf("expected override to match, got %s", got)
	}
	if got := p.Recommend([]string{"街道"}); got != FullDetail {
		t.Fatalf("expected replaced outdoor set to drop 街道, got %s", got)
	}
	if got := p.Recommend([]string{"地铁"}); got != OutlineOnly {
		t.Fatalf("expected untouched transit set, got %s", got)
	}
}

func TestParseRecommendation(t *testing.T) {
	for _, in := range []string{"outline_only", "OUTLINE_ONLY", "推荐：只展示大纲"} {
		got, err := Parse(in)
		if err != nil || got != OutlineOnly {
			t.Fatalf("Parse(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := Parse("nope"); err == nil {
		t.Fatalf("expected parse error")
	}
	if FullDetail.Text() != "推荐：详细完整界面" {
		t.Fatalf("unexpected text %q", FullDetail.Text())
	}
}

func TestParseImageVariant(t *testing.T) {
	if v, _ := ParseImageVariant(""); v != ImageOverwrite {
		t.Fatalf("expected default overwrite, got %s", v)
	}
	if v, _ := ParseImageVariant("First-Match"); v != ImageFirstMatch {
		t.Fatalf("expected first_match, got %s", v)
	}
	if _, err := ParseImageVariant("x"); err == nil {
		t.Fatalf("expected error")
	}
}
