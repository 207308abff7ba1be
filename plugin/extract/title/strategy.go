package title

import (
	"strings"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Candidate is a raw, uncleaned title proposal from one strategy.
type Candidate struct {
	extract.Match
	Method  Method
	Pattern string
}

// Strategy proposes at most one title candidate for a text.
type Strategy interface {
	Name() string
	// MinConfidence is the floor the quality-adjusted confidence must reach.
	MinConfidence() float64
	// AdjustForQuality reports whether the quality score moves the confidence.
	AdjustForQuality() bool
	TryExtract(text string) (Candidate, bool)
}

// labelStrategy handles "Title:" style lines: the first pattern, in
// declaration order, that matches anywhere wins.
type labelStrategy struct {
	name     string
	method   Method
	floor    float64
	adjust   bool
	patterns []*pattern.Pattern
}

func (s *labelStrategy) Name() string           { return s.name }
func (s *labelStrategy) MinConfidence() float64 { return s.floor }
func (s *labelStrategy) AdjustForQuality() bool { return s.adjust }

func (s *labelStrategy) TryExtract(text string) (Candidate, bool) {
	for _, p := range s.patterns {
		loc := p.Regex.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		return candidate(text, loc[2], loc[3], loc[0], loc[1], p, s.method), true
	}
	return Candidate{}, false
}

// earliestStrategy picks the match that occurs first in the text across all
// of its patterns, optionally cut at the title boundary.
type earliestStrategy struct {
	name     string
	method   Method
	floor    float64
	patterns []*pattern.Pattern
	boundary *pattern.Pattern
}

func (s *earliestStrategy) Name() string           { return s.name }
func (s *earliestStrategy) MinConfidence() float64 { return s.floor }
func (s *earliestStrategy) AdjustForQuality() bool { return true }

func (s *earliestStrategy) TryExtract(text string) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, p := range s.patterns {
		loc := p.Regex.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		vs, ve := loc[2], loc[3]
		if s.boundary != nil {
			ve = vs + cutAt(s.boundary, text[vs:ve])
		}
		if ve <= vs {
			continue
		}
		if !found || vs < best.Start {
			best = candidate(text, vs, ve, loc[0], loc[1], p, s.method)
			found = true
		}
	}
	return best, found
}

// eventTypeStrategy finds the earliest event-type keyword and proposes the
// phrase of its line that leads up to the first boundary, so
// "Team standup tomorrow at 10" yields "Team standup".
type eventTypeStrategy struct {
	patterns []*pattern.Pattern
	boundary *pattern.Pattern
	metadata *pattern.Pattern
}

func (s *eventTypeStrategy) Name() string           { return "event_type" }
func (s *eventTypeStrategy) MinConfidence() float64 { return 0.6 }
func (s *eventTypeStrategy) AdjustForQuality() bool { return true }

func (s *eventTypeStrategy) TryExtract(text string) (Candidate, bool) {
	var (
		hit                *pattern.Pattern
		hs, he             = -1, -1
		lineStart, lineEnd int
	)
	for _, p := range s.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			if hs >= 0 && loc[0] >= hs {
				break
			}
			ls, le := lineBounds(text, loc[0])
			if s.metadata.Regex.MatchString(text[ls:le]) {
				continue
			}
			hit, hs, he = p, loc[0], loc[1]
			lineStart, lineEnd = ls, le
			break
		}
	}
	if hit == nil {
		return Candidate{}, false
	}
	line := text[lineStart:lineEnd]

	// Boundaries before the keyword belong to a prefix like "Reminder:";
	// skip past them so the keyword itself is retained. A keyword behind a
	// location preposition names the venue ("sync in 2B conference room"),
	// so the phrase before the preposition is proposed instead.
	offset, venueCut := 0, -1
	for offset < hs-lineStart {
		n := cutAt(s.boundary, line[offset:])
		if offset+n >= hs-lineStart {
			break
		}
		w := boundaryWidth(s.boundary, line[offset+n:])
		if offset+n > 0 && isLocationPreposition(line[offset+n:offset+n+w]) {
			venueCut = offset + n
			break
		}
		next := offset + n + w
		if next <= offset {
			break
		}
		offset = next
	}
	vs := lineStart + offset
	var ve int
	if venueCut >= 0 {
		ve = lineStart + venueCut
	} else {
		ve = vs + cutAt(s.boundary, text[vs:lineEnd])
		if ve < he {
			ve = he
		}
	}

	c := candidate(text, vs, ve, hs, he, hit, MethodEventType)
	c.Match.Method = "title_pattern_" + hit.Name
	c.Keywords = []string{strings.ToLower(text[hs:he])}
	return c, true
}

// sentenceStrategy proposes the first sentence when it has a sensible length,
// otherwise the first imperative sentence.
type sentenceStrategy struct {
	imperative *pattern.Pattern
	boundary   *pattern.Pattern
	metadata   *pattern.Pattern
}

func (s *sentenceStrategy) Name() string           { return "sentence" }
func (s *sentenceStrategy) MinConfidence() float64 { return 0.4 }
func (s *sentenceStrategy) AdjustForQuality() bool { return true }

func (s *sentenceStrategy) TryExtract(text string) (Candidate, bool) {
	sentences := splitSentences(text, s.metadata)
	if len(sentences) == 0 {
		return Candidate{}, false
	}
	first := sentences[0]
	if n := len(first.text); n >= 10 && n <= 80 {
		return Candidate{
			Match: extract.Match{
				Value:       first.text,
				Confidence:  0.5,
				Start:       first.start,
				End:         first.start + len(first.text),
				MatchedText: first.text,
				Method:      "title_first_sentence",
			},
			Method: MethodSentence,
		}, true
	}
	for _, sen := range sentences {
		loc := s.imperative.Regex.FindStringIndex(sen.text)
		if loc == nil {
			continue
		}
		phrase := sen.text[loc[0]:loc[1]]
		phrase = phrase[:cutAt(s.boundary, phrase)]
		return Candidate{
			Match: extract.Match{
				Value:       phrase,
				Confidence:  s.imperative.Confidence,
				Start:       sen.start + loc[0],
				End:         sen.start + loc[0] + len(phrase),
				MatchedText: sen.text[loc[0]:loc[1]],
				Method:      "title_" + s.imperative.Name,
			},
			Method:  MethodSentence,
			Pattern: s.imperative.Name,
		}, true
	}
	return Candidate{}, false
}

// fallbackStrategy takes the first non-empty, non-metadata line.
type fallbackStrategy struct {
	boundary *pattern.Pattern
	metadata *pattern.Pattern
}

func (s *fallbackStrategy) Name() string           { return "heuristic" }
func (s *fallbackStrategy) MinConfidence() float64 { return 0.7 }
func (s *fallbackStrategy) AdjustForQuality() bool { return false }

func (s *fallbackStrategy) TryExtract(text string) (Candidate, bool) {
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		start := offset
		offset += len(raw)
		line := strings.TrimSpace(raw)
		if line == "" || s.metadata.Regex.MatchString(line) {
			continue
		}
		start += strings.Index(raw, line)
		value := line
		if len(value) > maxTitleLength {
			value = value[:cutAt(s.boundary, value)]
		}
		return Candidate{
			Match: extract.Match{
				Value:       value,
				Confidence:  0.7,
				Start:       start,
				End:         start + len(value),
				MatchedText: line,
				Method:      "title_first_line",
			},
			Method: MethodHeuristic,
		}, true
	}
	return Candidate{}, false
}

func lineBounds(text string, i int) (int, int) {
	start := strings.LastIndexByte(text[:i], '\n') + 1
	end := len(text)
	if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
		end = i + j
	}
	return start, end
}

type sentence struct {
	text  string
	start int
}

// splitSentences splits non-metadata lines into sentences at terminal
// punctuation followed by whitespace or end of line.
func splitSentences(text string, metadata *pattern.Pattern) []sentence {
	var out []sentence
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		lineStart := offset
		offset += len(raw)
		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) == "" || metadata.Regex.MatchString(line) {
			continue
		}
		begin := 0
		for i := 0; i < len(line); i++ {
			c := line[i]
			if c != '.' && c != '!' && c != '?' {
				continue
			}
			if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '\t' {
				continue
			}
			out = appendSentence(out, line[begin:i], lineStart+begin)
			begin = i + 1
		}
		out = appendSentence(out, line[begin:], lineStart+begin)
	}
	return out
}

func appendSentence(out []sentence, s string, start int) []sentence {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return out
	}
	return append(out, sentence{text: trimmed, start: start + strings.Index(s, trimmed)})
}

// cutAt returns the length of the prefix of s that precedes the first boundary.
// isLocationPreposition reports whether a boundary introduces a place.
func isLocationPreposition(b string) bool {
	switch strings.ToLower(strings.TrimSpace(b)) {
	case "in", "at", "@":
		return true
	}
	return false
}

func cutAt(boundary *pattern.Pattern, s string) int {
	loc := boundary.Regex.FindStringIndex(s)
	if loc == nil {
		return len(s)
	}
	return loc[0]
}

func boundaryWidth(boundary *pattern.Pattern, s string) int {
	loc := boundary.Regex.FindStringIndex(s)
	if loc == nil || loc[0] != 0 {
		return 0
	}
	return loc[1]
}

func candidate(text string, vs, ve, ms, me int, p *pattern.Pattern, method Method) Candidate {
	return Candidate{
		Match: extract.Match{
			Value:       text[vs:ve],
			Confidence:  p.Confidence,
			Start:       vs,
			End:         ve,
			MatchedText: text[ms:me],
			Method:      p.Name,
		},
		Method:  method,
		Pattern: p.Name,
	}
}
