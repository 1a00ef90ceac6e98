package lisan

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full engine configuration, loaded from a single file with
// ${ENV} expansion applied to every string value.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Language    LanguageConfig    `mapstructure:"language"`
	Provider    VendorConfig      `mapstructure:"provider"`
	Transport   VendorConfig      `mapstructure:"transport"`
	Recording   RecordingConfig   `mapstructure:"recording"`
	Detection   DetectionConfig   `mapstructure:"detection"`
	Negotiation NegotiationConfig `mapstructure:"negotiation"`
	Connect     ConnectConfig     `mapstructure:"connect"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Privacy     PrivacyConfig     `mapstructure:"privacy"`
}

type LanguageConfig struct {
	Local string `mapstructure:"local"`
	Voice string `mapstructure:"voice"`
}

// VendorConfig selects a named implementation plus its free-form settings.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type RecordingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dir       string `mapstructure:"dir"`
	QueueSize int    `mapstructure:"queue_size"`
	// RetentionDays, when positive, purges stopped sessions older than this
	// many days at engine startup.
	RetentionDays int `mapstructure:"retention_days"`
}

type DetectionConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type NegotiationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ConnectConfig struct {
	TimeoutMS   int `mapstructure:"timeout_ms"`
	MaxAttempts int `mapstructure:"max_attempts"`
	BackoffMS   int `mapstructure:"backoff_ms"`
}

type MetricsConfig struct {
	JSONLPath string `mapstructure:"jsonl_path"`
	// SampleRate between 0 and 1 thins high-frequency per-frame events.
	// Zero or one records everything.
	SampleRate float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	// RedactPII masks emails and phone numbers in surfaced transcripts.
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("language.local", "en")
	v.SetDefault("provider.provider", "openairt")
	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.dir", "recordings")
	v.SetDefault("recording.queue_size", 512)
	v.SetDefault("recording.retention_days", 0)
	v.SetDefault("detection.enabled", false)
	v.SetDefault("negotiation.enabled", true)
	v.SetDefault("connect.timeout_ms", 5000)
	v.SetDefault("connect.max_attempts", 3)
	v.SetDefault("connect.backoff_ms", 200)
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", false)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.Provider) == "" {
		return fmt.Errorf("provider.provider is required")
	}
	if strings.TrimSpace(c.Language.Local) == "" {
		return fmt.Errorf("language.local is required")
	}
	if c.Recording.Enabled && strings.TrimSpace(c.Recording.Dir) == "" {
		return fmt.Errorf("recording.dir is required when recording is enabled")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Provider.Settings = expandSettings(cfg.Provider.Settings)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
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

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
