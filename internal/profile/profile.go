// Package profile loads the service configuration from an optional YAML file
// and EVENTSENSE_* environment variables.
package profile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	exerrors "github.com/hrygo/eventsense/internal/errors"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "EVENTSENSE"

// Profile is the configuration to start the parser, the CLI and the server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for server
	Addr string `mapstructure:"addr"`
	// Port is the binding port for server
	Port int `mapstructure:"port"`
	// Timezone is the IANA zone relative dates are resolved in
	Timezone string `mapstructure:"timezone"`
	// Version is the current version of the binary
	Version string `mapstructure:"-"`

	Log      LogConfig      `mapstructure:"log"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Location LocationConfig `mapstructure:"location"`
	Merge    MergeConfig    `mapstructure:"merge"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// ParserConfig tunes the routing pipeline.
type ParserConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	FieldTimeout        time.Duration `mapstructure:"field_timeout"`
	MaxInputLength      int           `mapstructure:"max_input_length"`
	AcceptPolicy        string        `mapstructure:"accept_policy"`
	EnableBackup        bool          `mapstructure:"enable_backup"`
	EnableLLM           bool          `mapstructure:"enable_llm"`
}

// LocationConfig tunes the advanced location extractor.
type LocationConfig struct {
	EnableCoordinates bool `mapstructure:"enable_coordinates"`
}

// MergeConfig holds the clipboard merge gates.
type MergeConfig struct {
	MaxCombinedLength     int     `mapstructure:"max_combined_length"`
	MaxLengthRatio        float64 `mapstructure:"max_length_ratio"`
	LongFragmentThreshold int     `mapstructure:"long_fragment_threshold"`
	EnableLLMEnhancement  bool    `mapstructure:"enable_llm_enhancement"`
}

// DefaultsConfig is the window used for weekday-only events.
type DefaultsConfig struct {
	StartHour int           `mapstructure:"start_hour"`
	Duration  time.Duration `mapstructure:"duration"`
}

// LLMConfig selects and tunes the LLM provider.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"` // none, openai, deepseek, siliconflow, ollama
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

// CacheConfig selects the cache tiers. Empty RedisAddr or Driver disables
// the corresponding tier.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	Capacity      int           `mapstructure:"capacity"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Driver        string        `mapstructure:"driver"` // "", sqlite, postgres
	DSN           string        `mapstructure:"dsn"`
}

// ServerConfig limits per-client request rates.
type ServerConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// defaults registers every key so AutomaticEnv can override nested values.
var defaults = map[string]any{
	"mode":     "dev",
	"addr":     "",
	"port":     8081,
	"timezone": "UTC",

	"log.level":  "info",
	"log.format": "text",

	"parser.confidence_threshold": 0.6,
	"parser.timeout":              10 * time.Second,
	"parser.field_timeout":        2 * time.Second,
	"parser.max_input_length":     10000,
	"parser.accept_policy":        "confidence >= threshold && has_title && has_start",
	"parser.enable_backup":        true,
	"parser.enable_llm":           true,

	"location.enable_coordinates": false,

	"merge.max_combined_length":     5000,
	"merge.max_length_ratio":        3.0,
	"merge.long_fragment_threshold": 500,
	"merge.enable_llm_enhancement":  false,

	"defaults.start_hour": 9,
	"defaults.duration":   time.Hour,

	"llm.provider":        "none",
	"llm.model":           "",
	"llm.api_key":         "",
	"llm.base_url":        "",
	"llm.timeout":         8 * time.Second,
	"llm.max_tokens":      512,
	"llm.temperature":     0.1,
	"llm.rate_per_minute": 50.0,
	"llm.burst":           5,

	"cache.ttl":            24 * time.Hour,
	"cache.capacity":       1000,
	"cache.redis_addr":     "",
	"cache.redis_password": "",
	"cache.redis_db":       0,
	"cache.driver":         "",
	"cache.dsn":            "",

	"server.rate_per_second": 10.0,
	"server.burst":           20,
}

// NewViper builds a viper instance with the standard settings: YAML file
// type, EVENTSENSE_ env prefix, automatic env binding, "." → "_" key
// replacement and every default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads configPath when it is not empty, merges environment overrides
// and validates the result.
func Load(v *viper.Viper, configPath string) (*Profile, error) {
	if v == nil {
		v = NewViper()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", configPath)
		}
	}

	p := &Profile{}
	if err := v.Unmarshal(p); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// TimeZone returns the configured time zone.
func (p *Profile) TimeZone() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsLLMEnabled reports whether a provider is configured and allowed.
func (p *Profile) IsLLMEnabled() bool {
	return p.Parser.EnableLLM && p.LLM.Provider != "" && p.LLM.Provider != "none"
}

// Validate normalizes the mode and rejects settings the pipeline cannot run with.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return exerrors.ConfigInvalid("unknown timezone "+p.Timezone, err)
	}
	if t := p.Parser.ConfidenceThreshold; t < 0 || t > 1 {
		return exerrors.ConfigInvalid("parser.confidence_threshold must be within [0, 1]", nil)
	}
	if p.Parser.Timeout <= 0 || p.Parser.FieldTimeout <= 0 {
		return exerrors.ConfigInvalid("parser timeouts must be positive", nil)
	}
	if p.Parser.FieldTimeout > p.Parser.Timeout {
		return exerrors.ConfigInvalid("parser.field_timeout must not exceed parser.timeout", nil)
	}
	if p.Parser.MaxInputLength <= 0 {
		return exerrors.ConfigInvalid("parser.max_input_length must be positive", nil)
	}
	if p.Merge.MaxCombinedLength <= 0 || p.Merge.MaxLengthRatio < 1 {
		return exerrors.ConfigInvalid("merge limits are out of range", nil)
	}
	if p.Defaults.StartHour < 0 || p.Defaults.StartHour > 23 {
		return exerrors.ConfigInvalid("defaults.start_hour must be within [0, 23]", nil)
	}
	switch p.LLM.Provider {
	case "", "none", "ollama":
	case "openai", "deepseek", "siliconflow":
		if p.Parser.EnableLLM && p.LLM.APIKey == "" {
			return exerrors.ConfigInvalid("llm.api_key is required for provider "+p.LLM.Provider, nil)
		}
	default:
		return exerrors.ConfigInvalid("unsupported llm.provider "+p.LLM.Provider, nil)
	}
	switch p.Cache.Driver {
	case "", "sqlite", "postgres":
	default:
		return exerrors.ConfigInvalid("unsupported cache.driver "+p.Cache.Driver, nil)
	}
	if p.Cache.Driver != "" && p.Cache.DSN == "" {
		return exerrors.ConfigInvalid("cache.dsn is required when cache.driver is set", nil)
	}
	return nil
}
