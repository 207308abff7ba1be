package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/plugin/ai/timeout"
	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/merge"
)

// EventFields is the structured event guess of a provider.
type EventFields struct {
	Title       string     `json:"title"`
	Start       *time.Time `json:"start_datetime,omitempty"`
	End         *time.Time `json:"end_datetime,omitempty"`
	Location    string     `json:"location"`
	Description string     `json:"description,omitempty"`
	AllDay      bool       `json:"all_day"`
}

// Extraction is a provider answer: the fields, an overall confidence and a
// per-field confidence keyed by field name (title, start_datetime,
// end_datetime, location).
type Extraction struct {
	Fields           EventFields        `json:"fields"`
	Confidence       float64            `json:"confidence"`
	FieldConfidence  map[string]float64 `json:"field_confidence"`
	ProviderMetadata map[string]any     `json:"provider_metadata"`
}

// FieldScore returns the confidence reported for a field, falling back to
// the overall confidence.
func (x *Extraction) FieldScore(field string) float64 {
	if c, ok := x.FieldConfidence[field]; ok {
		return c
	}
	return x.Confidence
}

// Provider is an LLM capability. Callers must check IsAvailable before use;
// a provider that is not available returns COLLABORATOR_UNAVAILABLE.
type Provider interface {
	Name() string
	IsAvailable() bool
	// ExtractEvent guesses the event fields of text. hint is optional context
	// such as the fields the deterministic extractors already found.
	ExtractEvent(ctx context.Context, text, hint string) (*Extraction, error)
	// EnhanceText rewrites text into a form easier to parse.
	EnhanceText(ctx context.Context, text string) (string, float64, error)
}

// NewProvider selects the provider variant from cfg.
func NewProvider(cfg *LLMConfig, logger *slog.Logger) (Provider, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.Provider == ProviderNone:
		return NoProvider{}, nil
	case cfg.IsCloud():
		return NewCloudProvider(cfg, logger), nil
	default:
		model, err := NewJSONModel(cfg)
		if err != nil {
			return nil, exerrors.CollaboratorUnavailable(cfg.Provider, err)
		}
		return NewLocalProvider(model, cfg, logger), nil
	}
}

// NoProvider is the provider used when no LLM is configured.
type NoProvider struct{}

func (NoProvider) Name() string      { return ProviderNone }
func (NoProvider) IsAvailable() bool { return false }

func (NoProvider) ExtractEvent(context.Context, string, string) (*Extraction, error) {
	return nil, exerrors.CollaboratorUnavailable(ProviderNone, nil)
}

func (NoProvider) EnhanceText(context.Context, string) (string, float64, error) {
	return "", 0, exerrors.CollaboratorUnavailable(ProviderNone, nil)
}

// completer sends one system+user exchange and returns the raw answer.
type completer func(ctx context.Context, system, user string) (string, error)

// llmProvider holds what both concrete providers share: rate limiting, the
// per-call timeout, prompt construction and answer parsing.
type llmProvider struct {
	name     string
	complete completer
	limiter  *rate.Limiter
	timeout  time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

func newLLMProvider(name string, cfg *LLMConfig, logger *slog.Logger, c completer) llmProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return llmProvider{
		name:     name,
		complete: c,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60), cfg.Burst),
		timeout:  cfg.Timeout,
		loc:      cfg.Location,
		now:      time.Now,
		logger:   logger,
	}
}

func (p *llmProvider) Name() string { return p.name }

// call runs one completion under the limiter and the per-call timeout.
func (p *llmProvider) call(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", exerrors.ExtractionTimeout(p.name, ctx.Err())
		}
		return "", exerrors.CollaboratorUnavailable(p.name+" rate limit", err)
	}

	start := time.Now()
	content, err := p.complete(ctx, system, user)
	latency := time.Since(start)
	if err != nil {
		p.logger.Warn("LLM request failed",
			"provider", p.name,
			"error", err,
			"latency_ms", latency.Milliseconds())
		if ctx.Err() != nil {
			return "", exerrors.ExtractionTimeout(p.name, ctx.Err())
		}
		return "", exerrors.CollaboratorUnavailable(p.name, err)
	}
	p.logger.Debug("LLM request completed",
		"provider", p.name,
		"latency_ms", latency.Milliseconds())
	return content, nil
}

func (p *llmProvider) ExtractEvent(ctx context.Context, text, hint string) (*Extraction, error) {
	now := p.now().In(p.loc)
	content, err := p.call(ctx, extractSystemPrompt(now), buildExtractPrompt(text, hint))
	if err != nil {
		return nil, err
	}
	x, err := parseExtraction(content, p.loc)
	if err != nil {
		p.logger.Warn("Failed to parse LLM response",
			"provider", p.name,
			"content", timeout.Truncate(content),
			"error", err)
		return nil, exerrors.CollaboratorUnavailable(p.name, err)
	}
	x.ProviderMetadata["provider"] = p.name
	return x, nil
}

func (p *llmProvider) EnhanceText(ctx context.Context, text string) (string, float64, error) {
	content, err := p.call(ctx, enhanceSystemPrompt, text)
	if err != nil {
		return "", 0, err
	}
	var raw struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return "", 0, exerrors.CollaboratorUnavailable(p.name, err)
	}
	if strings.TrimSpace(raw.Text) == "" {
		return "", 0, nil
	}
	return strings.TrimSpace(raw.Text), extract.Clamp(raw.Confidence, 0, 1), nil
}

// LocalProvider runs against a local model through langchaingo.
type LocalProvider struct {
	llmProvider
	model JSONModel
}

// NewLocalProvider wraps model.
func NewLocalProvider(model JSONModel, cfg *LLMConfig, logger *slog.Logger) *LocalProvider {
	lp := &LocalProvider{model: model}
	lp.llmProvider = newLLMProvider(cfg.Provider, cfg, logger, model.GenerateJSON)
	return lp
}

func (p *LocalProvider) IsAvailable() bool { return p.model != nil }

// CloudProvider talks to an OpenAI-compatible HTTP API.
type CloudProvider struct {
	llmProvider
	client    *openai.Client
	model     string
	apiKey    string
	maxTokens int
	temp      float32
}

// NewCloudProvider creates a go-openai client against cfg.BaseURL.
func NewCloudProvider(cfg *LLMConfig, logger *slog.Logger) *CloudProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	cp := &CloudProvider{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		temp:      cfg.Temperature,
	}
	cp.llmProvider = newLLMProvider(cfg.Provider, cfg, logger, cp.chat)
	return cp
}

func (p *CloudProvider) IsAvailable() bool { return p.apiKey != "" }

func (p *CloudProvider) chat(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}

// mergeEnhancer adapts a Provider to the merge helper's Enhancer.
type mergeEnhancer struct {
	p Provider
}

// NewMergeEnhancer exposes p's text rewriting to the merge helper.
func NewMergeEnhancer(p Provider) merge.Enhancer {
	return mergeEnhancer{p: p}
}

func (m mergeEnhancer) IsAvailable() bool { return m.p != nil && m.p.IsAvailable() }

func (m mergeEnhancer) Enhance(ctx context.Context, text string) (merge.Enhancement, error) {
	out, conf, err := m.p.EnhanceText(ctx, text)
	if err != nil {
		return merge.Enhancement{}, err
	}
	return merge.Enhancement{Text: out, Confidence: conf}, nil
}

const extractSystemPromptTemplate = `You extract calendar events from text.
The current time is %s (%s).
Answer with one JSON object and nothing else:
{"title": string, "start_datetime": string|null, "end_datetime": string|null,
 "location": string, "description": string, "all_day": bool,
 "confidence": number, "field_confidence": {"title": number, "start_datetime": number, "location": number}}
Datetimes use the format YYYY-MM-DDTHH:MM:SS in the current time zone.
Use empty strings and null for fields the text does not state. Confidences are between 0 and 1.`

const enhanceSystemPrompt = `Rewrite the text as one short sentence describing a calendar event
(what, when, where) without inventing details.
Answer with one JSON object and nothing else: {"text": string, "confidence": number}`

func extractSystemPrompt(now time.Time) string {
	return fmt.Sprintf(extractSystemPromptTemplate, now.Format("2006-01-02T15:04:05 Monday"), now.Location())
}

func buildExtractPrompt(text, hint string) string {
	if hint == "" {
		return "Text:\n" + text
	}
	return "Already extracted: " + hint + "\nText:\n" + text
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripCodeFence returns the JSON body of an answer that may be wrapped in a
// markdown code block.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := codeFence.FindStringSubmatch(content); len(m) > 1 {
			return m[1]
		}
	}
	return content
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseDatetime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

func parseExtraction(content string, loc *time.Location) (*Extraction, error) {
	var raw struct {
		Title           string             `json:"title"`
		Start           *string            `json:"start_datetime"`
		End             *string            `json:"end_datetime"`
		Location        string             `json:"location"`
		Description     string             `json:"description"`
		AllDay          bool               `json:"all_day"`
		Confidence      float64            `json:"confidence"`
		FieldConfidence map[string]float64 `json:"field_confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	x := &Extraction{
		Fields: EventFields{
			Title:       strings.TrimSpace(raw.Title),
			Location:    strings.TrimSpace(raw.Location),
			Description: strings.TrimSpace(raw.Description),
			AllDay:      raw.AllDay,
		},
		Confidence:       extract.Clamp(raw.Confidence, 0, 1),
		FieldConfidence:  make(map[string]float64, len(raw.FieldConfidence)),
		ProviderMetadata: map[string]any{},
	}
	if raw.Start != nil {
		x.Fields.Start = parseDatetime(*raw.Start, loc)
	}
	if raw.End != nil {
		x.Fields.End = parseDatetime(*raw.End, loc)
	}
	if x.Fields.Start != nil && x.Fields.End != nil && x.Fields.End.Before(*x.Fields.Start) {
		x.Fields.End = nil
	}
	for k, v := range raw.FieldConfidence {
		x.FieldConfidence[k] = extract.Clamp(v, 0, 1)
	}
	return x, nil
}
