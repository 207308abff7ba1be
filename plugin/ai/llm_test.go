package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestNewJSONModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *LLMConfig
		wantErr bool
	}{
		{
			name: "ollama",
			cfg:  &LLMConfig{Provider: ProviderOllama, Model: "llama3.1", BaseURL: "http://localhost:11434"},
		},
		{
			name: "openai compatible gateway",
			cfg: &LLMConfig{
				Provider:  ProviderDeepSeek,
				Model:     "deepseek-chat",
				APIKey:    "test-key",
				BaseURL:   "https://api.deepseek.com/v1",
				MaxTokens: 512,
			},
		},
		{
			name:    "unsupported provider",
			cfg:     &LLMConfig{Provider: "unsupported"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewJSONModel(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)
		})
	}
}

func TestExchange(t *testing.T) {
	got := exchange("You extract events", "Lunch tomorrow")
	require.Len(t, got, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, got[1].Role)
	assert.Equal(t, llms.TextPart("Lunch tomorrow"), got[1].Parts[0])

	got = exchange("", "Lunch tomorrow")
	require.Len(t, got, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, got[0].Role)
}
