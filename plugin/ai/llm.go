package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// JSONModel answers a single system+user exchange with one JSON object.
type JSONModel interface {
	GenerateJSON(ctx context.Context, system, user string) (string, error)
}

// langchainModel adapts a langchaingo llms.Model to JSONModel.
type langchainModel struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewJSONModel builds a langchaingo model for cfg. Ollama is the usual
// backend; OpenAI-compatible providers are accepted so a local gateway that
// speaks that protocol goes through the same path.
func NewJSONModel(cfg *LLMConfig) (JSONModel, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithFormat("json"),
		)
	case ProviderOpenAI, ProviderDeepSeek, ProviderSiliconFlow:
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, errors.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s model", cfg.Provider)
	}

	return &langchainModel{
		model: model,
		opts: []llms.CallOption{
			llms.WithMaxTokens(cfg.MaxTokens),
			llms.WithTemperature(float64(cfg.Temperature)),
			llms.WithJSONMode(),
		},
	}, nil
}

func (m *langchainModel) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := m.model.GenerateContent(ctx, exchange(system, user), m.opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// exchange builds the two-message conversation every extraction call sends.
// An empty system prompt is omitted.
func exchange(system, user string) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, 2)
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	return append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, user))
}
