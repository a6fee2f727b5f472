package recommend

import "fmt"

// Ruleset holds the curated keyword sets, matched by substring.
type Ruleset struct {
	Transit []string `mapstructure:"transit"`
	Outdoor []string `mapstructure:"outdoor"`
	Indoor  []string `mapstructure:"indoor"`
}

// Override replaces each set that is non-empty in o.
func (r Ruleset) Override(o Ruleset) Ruleset {
	if len(o.Transit) > 0 {
		r.Transit = o.Transit
	}
	if len(o.Outdoor) > 0 {
		r.Outdoor = o.Outdoor
	}
	if len(o.Indoor) > 0 {
		r.Indoor = o.Indoor
	}
	return r
}

func (r Ruleset) normalized() Ruleset {
	return Ruleset{
		Transit: normalizeAll(r.Transit),
		Outdoor: normalizeAll(r.Outdoor),
		Indoor:  normalizeAll(r.Indoor),
	}
}

// AudioRulesCompact is the audio-event table of the push deployment.
func AudioRulesCompact() Ruleset {
	return Ruleset{
		Transit: []string{"subway", "metro", "underground", "public transport", "train", "station", "platform"},
		Outdoor: []string{
			"street", "traffic", "vehicle", "car", "bus", "truck", "motorcycle", "horn",
			"outdoor", "crowd", "speech", "talking", "conversation",
			"applause", "clap", "clapping", "cheering", "laughter",
			"music", "instrument", "singing", "tv", "radio",
			"construction", "drill", "hammer", "ambulance", "fire engine", "siren",
			"dog", "dogs", "bird", "birds",
		},
		Indoor: []string{"silence", "quiet", "typing", "keyboard", "mouse click", "paper", "indoor", "room", "office"},
	}
}

// AudioRulesExtended is the audio-event table of the microphone polling deployment.
func AudioRulesExtended() Ruleset {
	return Ruleset{
		Transit: []string{
			"subway", "metro", "underground", "public transport", "train", "rail", "railroad", "station",
			"platform", "carriage", "wagon", "engine", "mass transit", "transportation noise", "announcement",
		},
		Outdoor: []string{
			"street", "road", "sidewalk", "traffic", "vehicle", "car", "bus", "truck", "motorcycle",
			"horn", "outdoor", "park", "plaza", "square", "crosswalk", "bicycle", "footsteps", "crowd",
			"speech", "talking", "conversation", "shout", "yelling", "dog", "bird", "birds", "wind", "nature",
			"children playing", "skateboard", "ambulance", "fire engine", "siren", "animal", "animals",
		},
		Indoor: []string{
			"silence", "quiet", "writing", "pen", "pencil", "typing", "keyboard", "mouse click", "paper",
			"desk", "furniture", "indoor", "room", "home", "living room", "office", "paper rustling",
			"flipping pages", "human breath", "cough", "clearing throat",
		},
	}
}

// ImageRulesCompact is the vision keyword table used by the overwrite variant.
func ImageRulesCompact() Ruleset {
	return Ruleset{
		Transit: []string{"地铁", "地铁站", "公共交通", "站台", "列车"},
		Outdoor: []string{"街道", "马路", "户外", "公园", "道路", "行人", "小区"},
		Indoor:  []string{"家", "房间", "卧室", "客厅", "书桌", "办公室", "显示器", "电脑"},
	}
}

// ImageRulesExtended is the vision keyword table used by the first-match variant.
func ImageRulesExtended() Ruleset {
	return Ruleset{
		Transit: []string{"地铁", "地铁站", "轨道", "车厢", "地铁口", "公共交通", "站台", "列车", "交通工具"},
		Outdoor: []string{
			"街道", "马路", "户外", "公路", "人行道", "广场", "道路", "步行", "路口", "行人", "人行横道", "公园", "小区",
		},
		Indoor: []string{
			"家", "房间", "卧室", "客厅", "书桌", "书房", "办公桌", "办公室", "宿舍", "桌面", "书架",
			"电脑", "台式电脑", "笔记本", "笔记本电脑", "显示器", "显示器屏幕",
		},
	}
}

// AudioRules returns a built-in audio table by name ("compact" or "extended").
func AudioRules(name string) (Ruleset, error) {
	switch normalize(name) {
	case "", "compact":
		return AudioRulesCompact(), nil
	case "extended":
		return AudioRulesExtended(), nil
	}
	return Ruleset{}, fmt.Errorf("unknown audio rules %q", name)
}
