package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "github.com/hrygo/eventsense/internal/errors"
)

// Tuesday 2026-01-27 10:00 UTC.
var fixedNow = time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)

const dentistAnswer = "```json\n" + `{"title": "Dentist appointment", "start_datetime": "2026-01-28T15:00:00",
"end_datetime": "2026-01-28T16:00:00", "location": "Main St Clinic", "all_day": false,
"confidence": 0.85, "field_confidence": {"title": 0.9, "start_datetime": 0.8}}` + "\n```"

// chatServer is an OpenAI-compatible /chat/completions endpoint.
func chatServer(t *testing.T, content string, delay time.Duration, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Len(t, req.Messages, 2)

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "upstream down", "type": "server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func cloudConfig(baseURL string) *LLMConfig {
	cfg := &LLMConfig{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: baseURL, Model: "gpt-4o-mini"}
	cfg.applyDefaults()
	return cfg
}

func TestCloudProvider_ExtractEvent(t *testing.T) {
	srv, hits := chatServer(t, dentistAnswer, 0, http.StatusOK)
	p := NewCloudProvider(cloudConfig(srv.URL), nil)
	p.now = func() time.Time { return fixedNow }

	require.True(t, p.IsAvailable())
	x, err := p.ExtractEvent(context.Background(), "Dentist tomorrow 3pm at Main St Clinic", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	assert.Equal(t, "Dentist appointment", x.Fields.Title)
	assert.Equal(t, "Main St Clinic", x.Fields.Location)
	require.NotNil(t, x.Fields.Start)
	require.NotNil(t, x.Fields.End)
	assert.Equal(t, time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC), *x.Fields.Start)
	assert.Equal(t, time.Hour, x.Fields.End.Sub(*x.Fields.Start))
	assert.Equal(t, 0.85, x.Confidence)
	assert.Equal(t, 0.9, x.FieldScore("title"))
	assert.Equal(t, 0.85, x.FieldScore("location"))
	assert.Equal(t, ProviderOpenAI, x.ProviderMetadata["provider"])
}

func TestCloudProvider_Failures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv, _ := chatServer(t, "", 0, http.StatusInternalServerError)
		p := NewCloudProvider(cloudConfig(srv.URL), nil)
		_, err := p.ExtractEvent(context.Background(), "x", "")
		require.Error(t, err)
		assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeCollaboratorUnavailable))
	})

	t.Run("slow server times out", func(t *testing.T) {
		srv, _ := chatServer(t, dentistAnswer, time.Second, http.StatusOK)
		cfg := cloudConfig(srv.URL)
		cfg.Timeout = 30 * time.Millisecond
		p := NewCloudProvider(cfg, nil)
		_, err := p.ExtractEvent(context.Background(), "x", "")
		require.Error(t, err)
		assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeExtractionTimeout))
	})

	t.Run("malformed answer", func(t *testing.T) {
		srv, _ := chatServer(t, "I think it is on Friday", 0, http.StatusOK)
		p := NewCloudProvider(cloudConfig(srv.URL), nil)
		_, err := p.ExtractEvent(context.Background(), "x", "")
		require.Error(t, err)
		assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeCollaboratorUnavailable))
	})

	t.Run("rate limited", func(t *testing.T) {
		srv, hits := chatServer(t, dentistAnswer, 0, http.StatusOK)
		cfg := cloudConfig(srv.URL)
		cfg.RatePerMinute = 0.5
		cfg.Burst = 1
		cfg.Timeout = 50 * time.Millisecond
		p := NewCloudProvider(cfg, nil)

		_, err := p.ExtractEvent(context.Background(), "x", "")
		require.NoError(t, err)
		_, err = p.ExtractEvent(context.Background(), "x", "")
		require.Error(t, err)
		assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeCollaboratorUnavailable))
		assert.Equal(t, int32(1), hits.Load())
	})
}

// fakeLLM is a JSONModel answering with a canned string.
type fakeLLM struct {
	answer string
	err    error
	system string
	user   string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.answer, f.err
}

func localConfig() *LLMConfig {
	cfg := &LLMConfig{Provider: ProviderOllama}
	cfg.applyDefaults()
	return cfg
}

func TestLocalProvider(t *testing.T) {
	t.Run("extract with hint", func(t *testing.T) {
		llm := &fakeLLM{answer: `{"title": "Standup", "start_datetime": null, "location": "", "confidence": 0.7}`}
		p := NewLocalProvider(llm, localConfig(), nil)
		p.now = func() time.Time { return fixedNow }

		require.True(t, p.IsAvailable())
		x, err := p.ExtractEvent(context.Background(), "standup", "title=Standup")
		require.NoError(t, err)
		assert.Equal(t, "Standup", x.Fields.Title)
		assert.Nil(t, x.Fields.Start)
		assert.Equal(t, ProviderOllama, x.ProviderMetadata["provider"])

		assert.Contains(t, llm.system, "2026-01-27T10:00:00 Tuesday")
		assert.Contains(t, llm.user, "Already extracted: title=Standup")
	})

	t.Run("backend error", func(t *testing.T) {
		p := NewLocalProvider(&fakeLLM{err: errors.New("connection refused")}, localConfig(), nil)
		_, err := p.ExtractEvent(context.Background(), "x", "")
		assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeCollaboratorUnavailable))
	})

	t.Run("enhance through merge adapter", func(t *testing.T) {
		llm := &fakeLLM{answer: `{"text": " Team standup tomorrow at 10am ", "confidence": 0.8}`}
		e := NewMergeEnhancer(NewLocalProvider(llm, localConfig(), nil))
		require.True(t, e.IsAvailable())
		out, err := e.Enhance(context.Background(), "standup / tomorrow 10")
		require.NoError(t, err)
		assert.Equal(t, "Team standup tomorrow at 10am", out.Text)
		assert.Equal(t, 0.8, out.Confidence)
	})
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&LLMConfig{Provider: ProviderNone}, nil)
	require.NoError(t, err)
	assert.False(t, p.IsAvailable())
	_, err = p.ExtractEvent(context.Background(), "x", "")
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeCollaboratorUnavailable))
	assert.False(t, NewMergeEnhancer(p).IsAvailable())

	p, err = NewProvider(&LLMConfig{Provider: ProviderSiliconFlow, APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CloudProvider{}, p)
	assert.Equal(t, ProviderSiliconFlow, p.Name())

	p, err = NewProvider(&LLMConfig{Provider: ProviderOllama}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)

	_, err = NewProvider(&LLMConfig{Provider: ProviderOpenAI}, nil)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeConfigInvalid))
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantStart bool
		wantEnd   bool
		wantConf  float64
	}{
		{"plain json", `{"title": "A", "start_datetime": "2026-02-01 09:30", "confidence": 0.5}`, false, true, false, 0.5},
		{"rfc3339", `{"title": "A", "start_datetime": "2026-02-01T09:30:00Z", "confidence": 0.5}`, false, true, false, 0.5},
		{"end before start dropped", `{"start_datetime": "2026-02-01T10:00:00", "end_datetime": "2026-02-01T09:00:00", "confidence": 0.6}`, false, true, false, 0.6},
		{"confidence clamped", `{"title": "A", "confidence": 7}`, false, false, false, 1},
		{"unparsable date ignored", `{"start_datetime": "next friday", "confidence": 0.4}`, false, false, false, 0.4},
		{"not json", `Sure! The event is on Friday.`, true, false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := parseExtraction(tt.content, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, x.Fields.Start != nil)
			assert.Equal(t, tt.wantEnd, x.Fields.End != nil)
			assert.Equal(t, tt.wantConf, x.Confidence)
		})
	}
}
