// Package title extracts an event title from free text by trying an ordered
// list of strategies and accepting the first candidate that survives cleaning
// and clears its strategy's confidence floor.
package title

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Method tags how a title was produced.
type Method string

const (
	MethodExplicit  Method = "explicit"
	MethodQuoted    Method = "quoted"
	MethodAction    Method = "action"
	MethodEventType Method = "event_type"
	MethodContext   Method = "context"
	MethodSentence  Method = "sentence"
	MethodHeuristic Method = "heuristic"
	MethodFallback  Method = "fallback"
	MethodEmpty     Method = "empty"
)

const (
	minTitleLength = 3
	maxTitleLength = 100

	// qualityPenalty is the largest confidence reduction a low-quality
	// candidate can receive.
	qualityPenalty = 0.1
	floorEpsilon   = 1e-9
)

// Result is the outcome of ExtractTitle. An empty Title means no title.
type Result struct {
	Title        string         `json:"title"`
	Confidence   float64        `json:"confidence"`
	Method       Method         `json:"generation_method"`
	RawText      string         `json:"raw_text"`
	QualityScore float64        `json:"quality_score"`
	Metadata     map[string]any `json:"extraction_metadata,omitempty"`
}

// Found reports whether a title was extracted.
func (r Result) Found() bool { return r.Title != "" }

// Extractor runs the title strategies. It holds no per-call state.
type Extractor struct {
	strategies []Strategy
	eventLex   *pattern.Pattern
	timeLex    *pattern.Pattern
}

// NewExtractor builds the strategy chain from lib in priority order.
func NewExtractor(lib *pattern.Library) *Extractor {
	boundary := lib.MustGet(pattern.TitleBoundary)
	metadata := lib.MustGet(pattern.GuardMetadataLine)

	return &Extractor{
		strategies: []Strategy{
			&labelStrategy{name: "label", method: MethodExplicit, floor: 0.9, patterns: lib.Group(pattern.GroupTitleLabel)},
			&labelStrategy{name: "keyword_label", method: MethodExplicit, floor: 0.8, adjust: true, patterns: lib.Group(pattern.GroupTitleKeyword)},
			&earliestStrategy{name: "quoted", method: MethodQuoted, floor: 0.7, patterns: lib.Group(pattern.GroupTitleQuoted)},
			&earliestStrategy{name: "action", method: MethodAction, floor: 0.7, patterns: lib.Group(pattern.GroupTitleAction)},
			&eventTypeStrategy{patterns: lib.Group(pattern.GroupTitleEventType), boundary: boundary, metadata: metadata},
			&earliestStrategy{name: "context", method: MethodContext, floor: 0.5, patterns: lib.Group(pattern.GroupTitleContext), boundary: boundary},
			&sentenceStrategy{imperative: lib.MustGet(pattern.TitleSentenceImperative), boundary: boundary, metadata: metadata},
			&fallbackStrategy{boundary: boundary, metadata: metadata},
		},
		eventLex: lib.MustGet(pattern.LexiconEvent),
		timeLex:  lib.MustGet(pattern.LexiconTimeOrDay),
	}
}

// ExtractTitle returns the best title for text. It never fails: empty input
// yields an "empty" result and exhausted strategies a zero-confidence
// "fallback" result.
func (e *Extractor) ExtractTitle(text string) Result {
	text = strings.ToValidUTF8(text, "")
	if strings.TrimSpace(text) == "" {
		return Result{Method: MethodEmpty, Metadata: map[string]any{"reason": "empty_input"}}
	}

	for _, s := range e.strategies {
		m, ok := e.evaluate(s, text)
		if !ok {
			continue
		}
		return Result{
			Title:        m.Value,
			Confidence:   m.Confidence,
			Method:       m.method,
			RawText:      m.MatchedText,
			QualityScore: m.quality,
			Metadata: map[string]any{
				"strategy":  s.Name(),
				"pattern":   m.Method,
				"start_pos": m.Start,
				"end_pos":   m.End,
			},
		}
	}

	return Result{
		Method:   MethodFallback,
		RawText:  strings.TrimSpace(text),
		Metadata: map[string]any{"strategy": "none"},
	}
}

// Candidates returns every strategy's accepted candidate, cleaned, in
// strategy priority order. An overlap goes to the higher-priority strategy,
// so the first candidate is always the one ExtractTitle returns.
func (e *Extractor) Candidates(text string) []extract.Match {
	text = strings.ToValidUTF8(text, "")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	out := make([]extract.Match, 0, len(e.strategies))
	for _, s := range e.strategies {
		if m, ok := e.evaluate(s, text); ok {
			out = append(out, m.Match)
		}
	}
	return extract.KeepFirst(out)
}

type scored struct {
	extract.Match
	method  Method
	quality float64
}

func (e *Extractor) evaluate(s Strategy, text string) (scored, bool) {
	c, ok := s.TryExtract(text)
	if !ok {
		return scored{}, false
	}
	cleaned := Clean(c.Value)
	if n := utf8.RuneCountInString(cleaned); n < minTitleLength || n > maxTitleLength {
		return scored{}, false
	}

	q := e.quality(cleaned)
	conf := c.Confidence
	if s.AdjustForQuality() {
		conf -= qualityPenalty * (1 - q)
	}
	conf = extract.Clamp(conf, 0, 1)
	if conf+floorEpsilon < s.MinConfidence() {
		return scored{}, false
	}

	m := c.Match
	m.Value = cleaned
	m.Confidence = conf
	return scored{Match: m, method: c.Method, quality: q}, true
}

// quality scores how title-like a cleaned string is, in [0, 1].
func (e *Extractor) quality(t string) float64 {
	q := 0.5
	switch words := len(strings.Fields(t)); {
	case words >= 2 && words <= 8:
		q += 0.2
	case words > 12:
		q -= 0.1
	}
	if r, _ := utf8.DecodeRuneInString(t); unicode.IsUpper(r) {
		q += 0.1
	}
	if e.eventLex.Regex.MatchString(t) {
		q += 0.2
	}
	if e.timeLex.Regex.MatchString(t) {
		q -= 0.2
	}
	if len(t) > 60 {
		q -= 0.1
	}
	return extract.Clamp(q, 0, 1)
}
