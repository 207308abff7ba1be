package router

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/singleflight"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai"
	"github.com/hrygo/eventsense/plugin/ai/aitime"
	"github.com/hrygo/eventsense/plugin/ai/timeout"
	"github.com/hrygo/eventsense/plugin/extract/backup"
	"github.com/hrygo/eventsense/plugin/extract/datetime"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/merge"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
	"github.com/hrygo/eventsense/plugin/extract/textnorm"
	"github.com/hrygo/eventsense/plugin/extract/title"
	"github.com/hrygo/eventsense/store/cache"
)

// Config contains the configuration for the hybrid parser.
type Config struct {
	Threshold      float64
	Timeout        time.Duration
	FieldTimeout   time.Duration
	LLMTimeout     time.Duration
	CacheTimeout   time.Duration
	CacheTTL       time.Duration
	MaxInputLength int
	AcceptPolicy   string
	EnableBackup   bool
	Location       *time.Location
	Locations      location.Config
	Merge          merge.Config
	Defaults       merge.DefaultPolicy
}

// DefaultConfig returns the parser defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:      event.SafeThreshold,
		Timeout:        timeout.ParseTimeout,
		FieldTimeout:   timeout.FieldTimeout,
		LLMTimeout:     timeout.LLMTimeout,
		CacheTimeout:   timeout.CacheTimeout,
		CacheTTL:       cache.DefaultTTL,
		MaxInputLength: 10000,
		AcceptPolicy:   DefaultAcceptPolicy,
		EnableBackup:   true,
		Location:       time.UTC,
		Locations:      location.DefaultConfig(),
		Merge:          merge.DefaultConfig(),
		Defaults:       merge.DefaultSaferPolicy(),
	}
}

// NewConfigFromProfile maps the profile onto a parser configuration.
func NewConfigFromProfile(p *profile.Profile) Config {
	cfg := DefaultConfig()
	cfg.Threshold = p.Parser.ConfidenceThreshold
	cfg.Timeout = p.Parser.Timeout
	cfg.FieldTimeout = p.Parser.FieldTimeout
	cfg.MaxInputLength = p.Parser.MaxInputLength
	cfg.AcceptPolicy = p.Parser.AcceptPolicy
	cfg.EnableBackup = p.Parser.EnableBackup
	cfg.Location = p.TimeZone()
	cfg.Locations.EnableCoordinates = p.Location.EnableCoordinates
	cfg.Merge.MaxCombinedLength = p.Merge.MaxCombinedLength
	cfg.Merge.MaxLengthRatio = p.Merge.MaxLengthRatio
	cfg.Merge.LongFragmentThreshold = p.Merge.LongFragmentThreshold
	cfg.Merge.EnableLLMEnhancement = p.Merge.EnableLLMEnhancement
	cfg.Defaults.StartHour = p.Defaults.StartHour
	cfg.Defaults.Duration = p.Defaults.Duration
	if p.LLM.Timeout > 0 {
		cfg.LLMTimeout = p.LLM.Timeout
	}
	if p.Cache.TTL > 0 {
		cfg.CacheTTL = p.Cache.TTL
	}
	return cfg
}

// Option configures a HybridParser collaborator.
type Option func(*HybridParser)

// WithLibrary uses lib instead of the default pattern library.
func WithLibrary(lib *pattern.Library) Option {
	return func(p *HybridParser) { p.lib = lib }
}

// WithProvider sets the LLM capability used for fallback and enhancement.
func WithProvider(provider ai.Provider) Option {
	return func(p *HybridParser) { p.provider = provider }
}

// WithResolver sets the natural-time resolver behind the backup stage.
func WithResolver(r aitime.Resolver) Option {
	return func(p *HybridParser) { p.resolver = r }
}

// WithStore sets the parsed-event cache.
func WithStore(store *cache.EventStore) Option {
	return func(p *HybridParser) { p.store = store }
}

// WithMetrics sets the collectors parses are recorded in.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *HybridParser) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *HybridParser) { p.logger = l }
}

// WithClock makes relative dates resolve against now.
func WithClock(now func() time.Time) Option {
	return func(p *HybridParser) { p.now = now }
}

type titleExtractor interface {
	ExtractTitle(text string) title.Result
}

type dateExtractor interface {
	Extract(text string) datetime.Result
}

type locationExtractor interface {
	ExtractLocations(text string) []location.Result
}

// HybridParser routes a parse through the regex extractors, the
// deterministic backup and the LLM fallback, keeping per-field provenance.
// It holds no per-request state and is safe for concurrent use.
type HybridParser struct {
	cfg    Config
	lib    *pattern.Library
	policy *AcceptPolicy

	titles    titleExtractor
	dates     dateExtractor
	locations locationExtractor
	clock     *datetime.Extractor
	info      *event.InformationExtractor
	backup    *backup.Extractor
	merger    *merge.Helper

	provider ai.Provider
	resolver aitime.Resolver
	store    *cache.EventStore
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group
}

// NewHybridParser builds the parser. Only startup failures are returned:
// the pattern library or the accept policy failing to compile.
func NewHybridParser(cfg Config, opts ...Option) (*HybridParser, error) {
	p := &HybridParser{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.applyDefaults()

	if p.lib == nil {
		lib, err := pattern.Default()
		if err != nil {
			return nil, err
		}
		p.lib = lib
	}
	policy, err := NewAcceptPolicy(p.cfg.AcceptPolicy, p.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	p.policy = policy

	p.clock = datetime.NewExtractor(p.lib, p.cfg.Location).
		WithClock(p.now).
		WithDefaultDuration(p.cfg.Defaults.Duration)
	p.dates = p.clock
	p.titles = title.NewExtractor(p.lib)
	p.locations = location.NewAdvanced(p.lib, p.cfg.Locations)
	p.info = event.NewInformationExtractor(p.lib)
	p.backup = backup.New(p.resolver, p.cfg.Location).
		WithClock(p.now).
		WithDefaultDuration(p.cfg.Defaults.Duration)
	p.merger = merge.NewHelper(p.lib, p.cfg.Merge,
		merge.WithEnhancer(ai.NewMergeEnhancer(p.provider)),
		merge.WithLogger(p.logger),
	)
	return p, nil
}

func (p *HybridParser) applyDefaults() {
	def := DefaultConfig()
	if p.cfg.Threshold <= 0 {
		p.cfg.Threshold = def.Threshold
	}
	if p.cfg.Timeout <= 0 {
		p.cfg.Timeout = def.Timeout
	}
	if p.cfg.FieldTimeout <= 0 {
		p.cfg.FieldTimeout = def.FieldTimeout
	}
	if p.cfg.LLMTimeout <= 0 {
		p.cfg.LLMTimeout = def.LLMTimeout
	}
	if p.cfg.CacheTimeout <= 0 {
		p.cfg.CacheTimeout = def.CacheTimeout
	}
	if p.cfg.MaxInputLength <= 0 {
		p.cfg.MaxInputLength = def.MaxInputLength
	}
	if p.cfg.Location == nil {
		p.cfg.Location = time.UTC
	}
	if p.cfg.Defaults.Duration <= 0 {
		p.cfg.Defaults.Duration = def.Defaults.Duration
	}
	if p.cfg.Defaults.Confidence <= 0 {
		p.cfg.Defaults.Confidence = def.Defaults.Confidence
	}
	if p.provider == nil {
		p.provider = ai.NoProvider{}
	}
	if p.resolver == nil {
		p.resolver = aitime.NewService(p.cfg.Location.String())
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
}

// Config returns the effective configuration.
func (p *HybridParser) Config() Config { return p.cfg }

// Metrics returns the collectors the parser records into.
func (p *HybridParser) Metrics() *observability.Metrics { return p.metrics }

// Provider returns the LLM capability in use.
func (p *HybridParser) Provider() ai.Provider { return p.provider }

// Parse runs the pipeline. A request context found in ctx is reused for
// logging; otherwise one is created.
func (p *HybridParser) Parse(ctx context.Context, text, clipboard string) *event.ParsedEvent {
	rc, ok := observability.FromContext(ctx)
	if !ok {
		rc = observability.NewRequestContext(p.logger, "parse", len(text)+len(clipboard))
		ctx = observability.WithRequestContext(ctx, rc)
	}
	started := time.Now()

	ev := p.parse(ctx, rc, text, clipboard)

	p.metrics.RecordParse(string(ev.ParsingPath), time.Since(started))
	rc.Done(string(ev.ParsingPath),
		slog.Float64("confidence", ev.Confidence),
		slog.Bool("cache_hit", ev.CacheHit),
		slog.Bool("needs_confirmation", ev.NeedsConfirmation),
	)
	return ev
}

func (p *HybridParser) parse(ctx context.Context, rc *observability.RequestContext, text, clipboard string) *event.ParsedEvent {
	if reason, ok := p.validate(text, clipboard); !ok {
		rc.Debug("input rejected", slog.String("reason", reason))
		return invalidEvent(reason)
	}

	normText, format := textnorm.Normalize(text)
	normClip, _ := textnorm.Normalize(clipboard)
	prepared := p.merger.EnhanceTextForParsing(ctx, normText, normClip)
	working := strings.TrimSpace(prepared.FinalText)
	if working == "" {
		return invalidEvent("empty_after_normalization")
	}

	key := p.cacheKey(working)
	if ev, ok := p.lookup(ctx, rc, key); ok {
		return ev
	}

	stamp := func(ev *event.ParsedEvent) *event.ParsedEvent {
		ev.Metadata["parse_id"] = shortuuid.New()
		ev.Metadata["input_format"] = string(format)
		ev.Metadata["merge"] = prepared.Metadata
		ev.Metadata["merge_applied"] = prepared.MergeApplied
		ev.Metadata["enhancement_applied"] = prepared.EnhancementApplied
		return ev
	}

	// The flight outlives any single caller; route applies its own budget.
	flightCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		ev := stamp(p.route(flightCtx, rc, working))
		p.save(flightCtx, rc, key, ev)
		return ev, nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			rc.Debug("joined in-flight parse")
		}
		return res.Val.(*event.ParsedEvent).Clone()
	case <-ctx.Done():
		rc.Debug("caller gave up on in-flight parse", slog.String("error", ctx.Err().Error()))
		return stamp(p.finish(ctx, working, event.New()))
	}
}

// validate rejects empty input and input longer than MaxInputLength runes.
func (p *HybridParser) validate(text, clipboard string) (string, bool) {
	if strings.TrimSpace(text) == "" && strings.TrimSpace(clipboard) == "" {
		return "empty_input", false
	}
	if utf8.RuneCountInString(text)+utf8.RuneCountInString(clipboard) > p.cfg.MaxInputLength {
		return "input_too_long", false
	}
	return "", true
}

func invalidEvent(reason string) *event.ParsedEvent {
	ev := event.New()
	ev.ParsingPath = event.PathRegexPrimary
	ev.NeedsConfirmation = true
	ev.AddError(string(exerrors.ErrCodeInputInvalid))
	ev.Metadata["reason"] = reason
	ev.Metadata["parse_id"] = shortuuid.New()
	return ev
}

// cacheKey hashes the working text together with the reference day and
// zone, so relative dates never resolve against a stale clock.
func (p *HybridParser) cacheKey(working string) string {
	today := p.now().In(p.cfg.Location)
	return textnorm.CacheKey(working + "\n" + today.Format(time.DateOnly) + " " + p.cfg.Location.String())
}

func (p *HybridParser) lookup(ctx context.Context, rc *observability.RequestContext, key string) (*event.ParsedEvent, bool) {
	if p.store == nil {
		return nil, false
	}
	cctx, cancel := context.WithTimeout(ctx, p.cfg.CacheTimeout)
	defer cancel()

	ev, err := p.store.Get(cctx, key)
	switch {
	case err != nil:
		p.metrics.RecordCacheLookup(observability.CacheError)
		rc.Warn("cache lookup failed",
			slog.String(observability.LogFieldErrorCode, string(exerrors.GetCodeFromError(err, exerrors.ErrCodeCollaboratorUnavailable))),
			slog.String("error", err.Error()),
		)
		return nil, false
	case ev == nil:
		p.metrics.RecordCacheLookup(observability.CacheMiss)
		return nil, false
	default:
		p.metrics.RecordCacheLookup(observability.CacheHit)
		rc.Debug("cache hit")
		return ev, true
	}
}

// save caches events that completed without recorded errors; partial or
// degraded results are recomputed on the next request.
func (p *HybridParser) save(ctx context.Context, rc *observability.RequestContext, key string, ev *event.ParsedEvent) {
	if p.store == nil || len(ev.Errors()) > 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CacheTimeout)
	defer cancel()
	if err := p.store.Put(cctx, key, ev, p.cfg.CacheTTL); err != nil {
		rc.Warn("cache write failed", slog.String("error", err.Error()))
	}
}

// ExtractTitle returns the best title of text.
func (p *HybridParser) ExtractTitle(text string) title.Result {
	return p.titles.ExtractTitle(text)
}

// ExtractLocations returns the ranked locations of text.
func (p *HybridParser) ExtractLocations(text string) []location.Result {
	out := p.locations.ExtractLocations(text)
	if out == nil {
		return []location.Result{}
	}
	return out
}

// ExtractAllInformation returns title and location candidates of text.
func (p *HybridParser) ExtractAllInformation(text string) event.Information {
	return p.info.ExtractAllInformation(text)
}

// EnhanceTextForParsing merges and rewrites text ahead of extraction.
func (p *HybridParser) EnhanceTextForParsing(ctx context.Context, text, clipboard string) merge.Result {
	return p.merger.EnhanceTextForParsing(ctx, text, clipboard)
}

// ShouldMergeWithClipboard reports whether the two fragments would be merged.
func (p *HybridParser) ShouldMergeWithClipboard(text, clipboard string) bool {
	return p.merger.ShouldMergeWithClipboard(text, clipboard)
}

// CalculateOverallConfidence scores ev with the default weights.
func (p *HybridParser) CalculateOverallConfidence(ev *event.ParsedEvent) float64 {
	return p.info.CalculateOverallConfidence(ev)
}
