package ai

import (
	"time"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai/timeout"
)

// Provider names.
const (
	ProviderNone        = "none"
	ProviderOpenAI      = "openai"
	ProviderDeepSeek    = "deepseek"
	ProviderSiliconFlow = "siliconflow"
	ProviderOllama      = "ollama"
)

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider      string // none, openai, deepseek, siliconflow, ollama
	Model         string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	MaxTokens     int
	Temperature   float32
	RatePerMinute float64
	Burst         int
	Location      *time.Location
}

// providerDefaults holds the base URL and model used when config leaves them empty.
var providerDefaults = map[string]struct{ baseURL, model string }{
	ProviderOpenAI:      {"https://api.openai.com/v1", "gpt-4o-mini"},
	ProviderDeepSeek:    {"https://api.deepseek.com/v1", "deepseek-chat"},
	ProviderSiliconFlow: {"https://api.siliconflow.cn/v1", "Qwen/Qwen2.5-7B-Instruct"},
	ProviderOllama:      {"http://localhost:11434", "llama3.1"},
}

// NewConfigFromProfile creates the LLM config from profile. A profile with
// the LLM disabled yields provider "none".
func NewConfigFromProfile(p *profile.Profile) *LLMConfig {
	cfg := &LLMConfig{
		Provider:      ProviderNone,
		Model:         p.LLM.Model,
		APIKey:        p.LLM.APIKey,
		BaseURL:       p.LLM.BaseURL,
		Timeout:       p.LLM.Timeout,
		MaxTokens:     p.LLM.MaxTokens,
		Temperature:   float32(p.LLM.Temperature),
		RatePerMinute: p.LLM.RatePerMinute,
		Burst:         p.LLM.Burst,
		Location:      p.TimeZone(),
	}
	if p.IsLLMEnabled() {
		cfg.Provider = p.LLM.Provider
	}
	cfg.applyDefaults()
	return cfg
}

func (c *LLMConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if d, ok := providerDefaults[c.Provider]; ok {
		if c.BaseURL == "" {
			c.BaseURL = d.baseURL
		}
		if c.Model == "" {
			c.Model = d.model
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout.LLMTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = 50
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// IsCloud reports whether the provider speaks the OpenAI-compatible HTTP API.
func (c *LLMConfig) IsCloud() bool {
	switch c.Provider {
	case ProviderOpenAI, ProviderDeepSeek, ProviderSiliconFlow:
		return true
	}
	return false
}

// Validate validates the configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderNone, "":
		return nil
	case ProviderOllama:
		if c.BaseURL == "" {
			return exerrors.ConfigInvalid("ollama base URL is required", nil)
		}
	case ProviderOpenAI, ProviderDeepSeek, ProviderSiliconFlow:
		if c.APIKey == "" {
			return exerrors.ConfigInvalid("LLM API key is required for "+c.Provider, nil)
		}
	default:
		return exerrors.ConfigInvalid("unsupported LLM provider: "+c.Provider, nil)
	}
	if c.Model == "" {
		return exerrors.ConfigInvalid("LLM model is required", nil)
	}
	return nil
}
