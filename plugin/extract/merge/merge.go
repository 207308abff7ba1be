// Package merge decides whether a selection and a clipboard fragment belong
// to the same event, prepares the working text for extraction, and applies
// the defaulting policy for events that only name a weekday.
package merge

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Config holds the merge gates.
type Config struct {
	// MaxCombinedLength is the cap on the summed fragment length in runes.
	MaxCombinedLength int
	// MaxLengthRatio bounds how much longer one fragment may be than the other.
	MaxLengthRatio float64
	// LongFragmentThreshold is the length above which the ratio gate applies.
	LongFragmentThreshold int
	// EnableLLMEnhancement turns on the enhancer pass when one is available.
	EnableLLMEnhancement bool
	// EnhanceMinConfidence is the confidence an enhancement must exceed.
	EnhanceMinConfidence float64
}

// DefaultConfig returns the default merge gates.
func DefaultConfig() Config {
	return Config{
		MaxCombinedLength:     5000,
		MaxLengthRatio:        3.0,
		LongFragmentThreshold: 500,
		EnhanceMinConfidence:  0.6,
	}
}

// Enhancement is a rewritten text reported by an Enhancer.
type Enhancement struct {
	Text       string
	Confidence float64
}

// Enhancer rewrites text into a form easier to parse.
type Enhancer interface {
	IsAvailable() bool
	Enhance(ctx context.Context, text string) (Enhancement, error)
}

// Result is the outcome of EnhanceTextForParsing.
type Result struct {
	FinalText          string         `json:"final_text"`
	Confidence         float64        `json:"confidence"`
	MergeApplied       bool           `json:"merge_applied"`
	EnhancementApplied bool           `json:"enhancement_applied"`
	Metadata           map[string]any `json:"metadata"`
}

// Reasons reported in Result.Metadata["merge_reason"].
const (
	ReasonNoClipboard   = "no_clipboard"
	ReasonEmptyFragment = "empty_fragment"
	ReasonTooLong       = "combined_too_long"
	ReasonLengthRatio   = "length_ratio"
	ReasonDuplicate     = "duplicate"
	ReasonEventTime     = "event_time"
	ReasonLocationEvent = "location_event"
	ReasonSequential    = "sequential"
	ReasonUnrelated     = "not_complementary"
)

const (
	mergedConfidence    = 0.9
	rewrittenConfidence = 0.85
)

// Helper prepares text for extraction. It is safe for concurrent use.
type Helper struct {
	cfg      Config
	enhancer Enhancer
	logger   *slog.Logger

	eventLex     *regexp.Regexp
	timeLex      *regexp.Regexp
	placeLex     *regexp.Regexp
	continuation *regexp.Regexp
	rewrite      *regexp.Regexp
}

// Option configures a Helper.
type Option func(*Helper)

// WithEnhancer sets the LLM text enhancer.
func WithEnhancer(e Enhancer) Option {
	return func(h *Helper) { h.enhancer = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Helper) { h.logger = l }
}

// NewHelper builds a helper over lib. Zero config fields take their defaults.
func NewHelper(lib *pattern.Library, cfg Config, opts ...Option) *Helper {
	def := DefaultConfig()
	if cfg.MaxCombinedLength <= 0 {
		cfg.MaxCombinedLength = def.MaxCombinedLength
	}
	if cfg.MaxLengthRatio <= 0 {
		cfg.MaxLengthRatio = def.MaxLengthRatio
	}
	if cfg.LongFragmentThreshold <= 0 {
		cfg.LongFragmentThreshold = def.LongFragmentThreshold
	}
	if cfg.EnhanceMinConfidence <= 0 {
		cfg.EnhanceMinConfidence = def.EnhanceMinConfidence
	}
	h := &Helper{
		cfg:          cfg,
		logger:       slog.Default(),
		eventLex:     lib.MustGet(pattern.LexiconEvent).Regex,
		timeLex:      lib.MustGet(pattern.LexiconTimeOrDay).Regex,
		placeLex:     lib.MustGet(pattern.LexiconPlace).Regex,
		continuation: lib.MustGet(pattern.LexiconContinuation).Regex,
		rewrite:      lib.MustGet(pattern.RewriteStudentEvent).Regex,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Config returns the effective configuration.
func (h *Helper) Config() Config { return h.cfg }

// EnhanceTextForParsing merges clipboard into text when the fragments are
// complementary, then runs the enhancer or the rule-based rewrite. It never
// fails; collaborator errors are recorded in the metadata.
func (h *Helper) EnhanceTextForParsing(ctx context.Context, text, clipboard string) Result {
	res := Result{Metadata: map[string]any{}}

	working := strings.TrimSpace(text)
	clip := strings.TrimSpace(clipboard)
	switch {
	case working == "" && clip == "":
		res.Metadata["errors"] = []string{string(exerrors.ErrCodeInputInvalid)}
		return res
	case working == "":
		// Nothing selected; the clipboard is the whole input.
		working = clip
		res.Metadata["merge_reason"] = ReasonEmptyFragment
		res.Metadata["source"] = "clipboard"
	case clip == "":
		res.Metadata["merge_reason"] = ReasonNoClipboard
	default:
		ok, reason := h.decide(text, clipboard)
		res.Metadata["merge_reason"] = reason
		if ok {
			working = working + "\n" + clip
			res.MergeApplied = true
		} else {
			h.logger.Debug("merge declined",
				"code", exerrors.ErrCodeAmbiguousMerge,
				"reason", reason,
			)
		}
	}

	res.Confidence = 1.0
	if res.MergeApplied {
		res.Confidence = mergedConfidence
	}

	if enhanced, ok := h.enhance(ctx, working, res.Metadata); ok {
		res.FinalText = enhanced.Text
		res.Confidence = enhanced.Confidence
		res.EnhancementApplied = true
		return res
	}

	if rewritten, ok := h.RewriteKnownPhrasings(working); ok {
		working = rewritten
		res.Confidence = min(res.Confidence, rewrittenConfidence)
		res.Metadata["rule_rewrite"] = pattern.RewriteStudentEvent
	}
	res.FinalText = working
	return res
}

func (h *Helper) enhance(ctx context.Context, text string, meta map[string]any) (Enhancement, bool) {
	if !h.cfg.EnableLLMEnhancement || h.enhancer == nil || !h.enhancer.IsAvailable() {
		return Enhancement{}, false
	}
	out, err := h.enhancer.Enhance(ctx, text)
	if err != nil {
		code := exerrors.ErrCodeCollaboratorUnavailable
		if ctx.Err() != nil {
			code = exerrors.ErrCodeExtractionTimeout
		}
		h.logger.Warn("text enhancement failed", "code", code, "error", err)
		meta["errors"] = []string{string(code)}
		return Enhancement{}, false
	}
	meta["enhancer_confidence"] = out.Confidence
	if out.Confidence <= h.cfg.EnhanceMinConfidence || strings.TrimSpace(out.Text) == "" {
		return Enhancement{}, false
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, true
}

// ShouldMergeWithClipboard reports whether the two fragments describe the
// same event and should be concatenated.
func (h *Helper) ShouldMergeWithClipboard(text, clipboard string) bool {
	ok, _ := h.decide(text, clipboard)
	return ok
}

func (h *Helper) decide(text, clipboard string) (bool, string) {
	// The cap is measured on the raw fragments so padding cannot sneak past it.
	if utf8.RuneCountInString(text)+utf8.RuneCountInString(clipboard) > h.cfg.MaxCombinedLength {
		return false, ReasonTooLong
	}
	a, b := strings.TrimSpace(text), strings.TrimSpace(clipboard)
	if a == "" || b == "" {
		return false, ReasonEmptyFragment
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer, shorter := max(la, lb), min(la, lb)
	if longer > h.cfg.LongFragmentThreshold && float64(longer) > h.cfg.MaxLengthRatio*float64(shorter) {
		return false, ReasonLengthRatio
	}

	lowerA, lowerB := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(lowerA, lowerB) || strings.Contains(lowerB, lowerA) {
		return false, ReasonDuplicate
	}

	switch {
	case h.eventLex.MatchString(a) && h.timeLex.MatchString(b),
		h.eventLex.MatchString(b) && h.timeLex.MatchString(a):
		return true, ReasonEventTime
	case h.placeLex.MatchString(a) && h.eventLex.MatchString(b),
		h.placeLex.MatchString(b) && h.eventLex.MatchString(a):
		return true, ReasonLocationEvent
	case h.sequential(a, b):
		return true, ReasonSequential
	}
	return false, ReasonUnrelated
}

// sequential reports whether b reads as the continuation of a.
func (h *Helper) sequential(a, b string) bool {
	if strings.ContainsAny(a[len(a)-1:], ".!?") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(b)
	return unicode.IsLower(r) || h.continuation.MatchString(b)
}

// RewriteKnownPhrasings turns "On <day> the <group> students will <verb>
// <event>" into "<event> on <day> for <group> students" so the title and
// date extractors see the event first.
func (h *Helper) RewriteKnownPhrasings(text string) (string, bool) {
	loc := h.rewrite.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	day := text[loc[2]:loc[3]]
	group := strings.TrimSpace(text[loc[4]:loc[5]])
	ev := strings.TrimSpace(text[loc[8]:loc[9]])
	if ev == "" {
		return text, false
	}

	r, size := utf8.DecodeRuneInString(ev)
	ev = string(unicode.ToUpper(r)) + ev[size:]
	rewritten := ev + " on " + day + " for " + group + " students"
	return text[:loc[0]] + rewritten + text[loc[9]:], true
}
