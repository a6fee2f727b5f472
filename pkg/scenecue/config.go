package scenecue

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/harunnryd/scenecue/pkg/recommend"
)

// Deployment modes.
const (
	ModePush = "push"
	ModePoll = "poll"
)

type Config struct {
	Mode          string              `mapstructure:"mode"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	ClassMapPath  string              `mapstructure:"classmap_path"`
	Server        ServerConfig        `mapstructure:"server"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Transcoder    TranscoderConfig    `mapstructure:"transcoder"`
	Poll          PollConfig          `mapstructure:"poll"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	Vision        VisionConfig        `mapstructure:"vision"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	MaxClipBytes   int64         `mapstructure:"max_clip_bytes"`
	DrainTimeout   time.Duration `mapstructure:"drain_timeout"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

// Enabled reports whether a provider was configured.
func (v VendorConfig) Enabled() bool { return strings.TrimSpace(v.Provider) != "" }

type VendorsConfig struct {
	AudioModel VendorConfig `mapstructure:"audio_model"`
	Vision     VendorConfig `mapstructure:"vision"`
	Recorder   VendorConfig `mapstructure:"recorder"`
}

type TranscoderConfig struct {
	Binary     string        `mapstructure:"binary"`
	TempDir    string        `mapstructure:"temp_dir"`
	Timeout    time.Duration `mapstructure:"timeout"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type PollConfig struct {
	ClipSeconds float64       `mapstructure:"clip_seconds"`
	Interval    time.Duration `mapstructure:"interval"`
	TopK        int           `mapstructure:"top_k"`
}

type PolicyConfig struct {
	AudioRules   string            `mapstructure:"audio_rules"`
	ImageVariant string            `mapstructure:"image_variant"`
	ImageDefault string            `mapstructure:"image_default"`
	Audio        recommend.Ruleset `mapstructure:"audio"`
	Image        recommend.Ruleset `mapstructure:"image"`
}

type VisionConfig struct {
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

type ObservabilityConfig struct {
	MetricsDir string `mapstructure:"metrics_dir"`
	LogEvents  bool   `mapstructure:"log_events"`
}

type PrivacyConfig struct {
	RedactSecrets bool `mapstructure:"redact_secrets"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModePush)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("classmap_path", "yamnet_class_map.csv")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.max_clip_bytes", 8<<20)
	v.SetDefault("server.drain_timeout", "20s")
	v.SetDefault("vendors.audio_model.provider", "")
	v.SetDefault("vendors.vision.provider", "")
	v.SetDefault("vendors.recorder.provider", "")
	v.SetDefault("transcoder.binary", "ffmpeg")
	v.SetDefault("transcoder.temp_dir", "")
	v.SetDefault("transcoder.timeout", "30s")
	v.SetDefault("transcoder.stale_after", "1h")
	v.SetDefault("poll.clip_seconds", 10)
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("poll.top_k", 5)
	v.SetDefault("policy.audio_rules", "")
	v.SetDefault("policy.image_variant", "")
	v.SetDefault("policy.image_default", "")
	v.SetDefault("vision.breaker_threshold", 3)
	v.SetDefault("vision.breaker_cooldown", "30s")
	v.SetDefault("observability.metrics_dir", "")
	v.SetDefault("observability.log_events", false)
	v.SetDefault("privacy.redact_secrets", true)
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"log-format": "log_format",
	"addr":       "server.addr",
	"mode":       "mode",
}

// LoadConfig reads path (optional) with SCENECUE_* environment overrides.
// Changed flags in flags win over both.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCENECUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.applyModeDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyModeDefaults fills unset policy tables: push deployments use the
// compact audio table with the overwrite image variant, poll deployments
// the extended table with first-match.
func (c *Config) applyModeDefaults() {
	poll := c.Mode == ModePoll
	if strings.TrimSpace(c.Policy.AudioRules) == "" {
		c.Policy.AudioRules = "compact"
		if poll {
			c.Policy.AudioRules = "extended"
		}
	}
	if strings.TrimSpace(c.Policy.ImageVariant) == "" {
		c.Policy.ImageVariant = string(recommend.ImageOverwrite)
		if poll {
			c.Policy.ImageVariant = string(recommend.ImageFirstMatch)
		}
	}
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModePush, ModePoll:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModePush, ModePoll, c.Mode)
	}
	if !c.Vendors.AudioModel.Enabled() && !c.Vendors.Vision.Enabled() {
		return fmt.Errorf("at least one of vendors.audio_model.provider or vendors.vision.provider is required")
	}
	if c.Vendors.AudioModel.Enabled() && strings.TrimSpace(c.ClassMapPath) == "" {
		return fmt.Errorf("classmap_path is required with an audio model")
	}
	if c.Mode == ModePoll {
		if !c.Vendors.AudioModel.Enabled() {
			return fmt.Errorf("poll mode requires vendors.audio_model.provider")
		}
		if !c.Vendors.Recorder.Enabled() {
			return fmt.Errorf("poll mode requires vendors.recorder.provider")
		}
		if c.Poll.ClipSeconds <= 0 {
			return fmt.Errorf("poll.clip_seconds must be positive")
		}
	}
	if _, err := recommend.AudioRules(c.Policy.AudioRules); err != nil {
		return fmt.Errorf("policy.audio_rules: %w", err)
	}
	if _, err := recommend.ParseImageVariant(c.Policy.ImageVariant); err != nil {
		return fmt.Errorf("policy.image_variant: %w", err)
	}
	if strings.TrimSpace(c.Policy.ImageDefault) != "" {
		if _, err := recommend.Parse(c.Policy.ImageDefault); err != nil {
			return fmt.Errorf("policy.image_default: %w", err)
		}
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.AudioModel.Settings = expandSettings(cfg.Vendors.AudioModel.Settings)
	cfg.Vendors.Vision.Settings = expandSettings(cfg.Vendors.Vision.Settings)
	cfg.Vendors.Recorder.Settings = expandSettings(cfg.Vendors.Recorder.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

// expandValue walks exported string fields; settings maps are handled by
// expandSettings.
func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String {
			for i := 0; i < v.Len(); i++ {
				expandValue(v.Index(i))
			}
		}
	}
}
