package location

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// scanner runs pattern groups over text and turns matches into raw results.
type scanner struct {
	sc          scorer
	clues       []*pattern.Pattern
	venues      []*pattern.Pattern
	implicit    []*pattern.Pattern
	directional []*pattern.Pattern

	guardTime     *pattern.Pattern
	guardDuration *pattern.Pattern
	guardDate     *pattern.Pattern
	boundary      *pattern.Pattern
	labelBoundary *pattern.Pattern
}

func newScanner(lib *pattern.Library) scanner {
	return scanner{
		sc:            newScorer(lib),
		clues:         lib.Group(pattern.GroupContextClue),
		venues:        lib.Group(pattern.GroupVenue),
		implicit:      lib.Group(pattern.GroupImplicit),
		directional:   lib.Group(pattern.GroupDirectional),
		guardTime:     lib.MustGet(pattern.GuardTimePrefix),
		guardDuration: lib.MustGet(pattern.GuardDurationPrefix),
		guardDate:     lib.MustGet(pattern.GuardDatePrefix),
		boundary:      lib.MustGet(pattern.LocationBoundary),
		labelBoundary: lib.MustGet(pattern.LabelBoundary),
	}
}

// scoreFunc turns a pattern base confidence and a value into a final score.
type scoreFunc func(base float64, value string) float64

func baseOnly(base float64, _ string) float64 { return base }

// contextClues extracts the value that follows each clue word or symbol.
func (s scanner) contextClues(text string, score scoreFunc, out []Result) []Result {
	for _, p := range s.clues {
		label := strings.HasSuffix(p.Name, "_label")
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			if p.Name == pattern.ClueAt && loc[0] > 0 {
				// user@example.com is an address, not a venue.
				r, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
				if unicode.IsLetter(r) || unicode.IsDigit(r) {
					continue
				}
			}
			vs, ve := loc[2], loc[3]
			cut := s.boundary
			if label {
				cut = s.labelBoundary
			}
			ve = vs + cutBefore(cut, text[vs:ve])
			vs, ve = trimSpan(text, vs, ve)
			if vs >= ve {
				continue
			}
			value := cleanValue(text[vs:ve])
			if !label && s.looksTemporal(value) {
				continue
			}
			if !valid(value) {
				continue
			}
			out = append(out, Result{
				Match: extract.Match{
					Value:       value,
					Confidence:  score(p.Confidence, value),
					Start:       vs,
					End:         ve,
					MatchedText: text[loc[0]:loc[1]],
					Method:      p.Name,
					Keywords:    []string{clueWord(text[loc[0]:loc[2]])},
				},
				Type: s.sc.classify(value, TypeImplicit),
			})
		}
	}
	return out
}

// keywords extracts whole-match values from keyword-style pattern groups.
func (s scanner) keywords(text string, patterns []*pattern.Pattern, fallback Type, score scoreFunc, out []Result) []Result {
	for _, p := range patterns {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			vs, ve := trimSpan(text, loc[0], loc[1])
			value := cleanValue(text[vs:ve])
			if !valid(value) {
				continue
			}
			out = append(out, Result{
				Match: extract.Match{
					Value:       value,
					Confidence:  score(p.Confidence, value),
					Start:       vs,
					End:         ve,
					MatchedText: text[loc[0]:loc[1]],
					Method:      p.Name,
				},
				Type: s.sc.classify(value, fallback),
			})
		}
	}
	return out
}

// directionalRefs handles directional patterns; a captured landmark tail is
// cut at the first boundary so "near the library at 5" keeps "near the library".
func (s scanner) directionalRefs(text string, score scoreFunc, out []Result) []Result {
	for _, p := range s.directional {
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			end := loc[1]
			if len(loc) > 2 && loc[2] >= 0 {
				end = loc[2] + cutBefore(s.boundary, text[loc[2]:loc[3]])
			}
			vs, ve := trimSpan(text, loc[0], end)
			value := cleanValue(text[vs:ve])
			if !valid(value) {
				continue
			}
			out = append(out, Result{
				Match: extract.Match{
					Value:       value,
					Confidence:  score(p.Confidence, value),
					Start:       vs,
					End:         ve,
					MatchedText: text[loc[0]:loc[1]],
					Method:      p.Name,
				},
				Type: s.sc.classify(value, TypeDirectional),
			})
		}
	}
	return out
}

// looksTemporal reports whether a clue value is really a time, date or duration.
func (s scanner) looksTemporal(value string) bool {
	return s.guardTime.Regex.MatchString(value) ||
		s.guardDate.Regex.MatchString(value) ||
		s.guardDuration.Regex.MatchString(value)
}

// Advanced is the full location extractor. It is safe for concurrent use.
type Advanced struct {
	scanner
	cfg     Config
	address []*pattern.Pattern
}

// NewAdvanced returns an extractor over lib. Zero-valued config fields take
// their defaults.
func NewAdvanced(lib *pattern.Library, cfg Config) *Advanced {
	def := DefaultConfig()
	if cfg.MergeDistance <= 0 {
		cfg.MergeDistance = def.MergeDistance
	}
	if cfg.AlternativeDelta <= 0 {
		cfg.AlternativeDelta = def.AlternativeDelta
	}
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = def.MaxAlternatives
	}
	return &Advanced{
		scanner: newScanner(lib),
		cfg:     cfg,
		address: lib.Group(pattern.GroupAddress),
	}
}

// ExtractLocations returns the non-overlapping location candidates of text,
// sorted by confidence descending.
func (a *Advanced) ExtractLocations(text string) []Result {
	if strings.TrimSpace(text) == "" {
		return []Result{}
	}

	raw := make([]Result, 0, 16)
	raw = a.explicitAddresses(text, raw)
	raw = a.contextClues(text, a.sc.score, raw)
	raw = a.keywords(text, a.venues, TypeVenue, a.sc.score, raw)
	raw = a.keywords(text, a.implicit, TypeImplicit, a.sc.score, raw)
	raw = a.directionalRefs(text, a.sc.score, raw)

	raw = a.mergeAddressPostal(text, raw)
	kept := extract.RemoveOverlaps(raw)
	a.attachAlternatives(kept)
	return kept
}

func (a *Advanced) explicitAddresses(text string, out []Result) []Result {
	for _, p := range a.address {
		coords := p.Name == pattern.AddressCoordinates
		if coords && !a.cfg.EnableCoordinates {
			continue
		}
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			vs, ve := trimSpan(text, loc[0], loc[1])
			var value string
			if coords {
				// Signs and decimals are significant; no punctuation trimming.
				vs, ve = loc[0], loc[1]
				value = extract.CollapseSpaces(text[vs:ve])
			} else {
				value = cleanValue(text[vs:ve])
				if !valid(value) {
					continue
				}
			}
			fallback := TypeAddress
			if p.Name == pattern.AddressLandmark {
				fallback = TypeVenue
			}
			out = append(out, Result{
				Match: extract.Match{
					Value:       value,
					Confidence:  a.sc.score(p.Confidence, value),
					Start:       vs,
					End:         ve,
					MatchedText: text[loc[0]:loc[1]],
					Method:      p.Name,
				},
				Type: a.sc.classify(value, fallback),
			})
		}
	}
	return out
}

// mergeAddressPostal folds each street address and the nearest unused postal
// code within MergeDistance into one ADDRESS result spanning both.
func (a *Advanced) mergeAddressPostal(text string, raw []Result) []Result {
	var streets, postals []int
	for i, r := range raw {
		switch r.Method {
		case pattern.AddressStreet:
			streets = append(streets, i)
		case pattern.AddressPostal:
			postals = append(postals, i)
		}
	}
	if len(streets) == 0 || len(postals) == 0 {
		return raw
	}

	used := make(map[int]bool)
	var merged []Result
	for _, si := range streets {
		st := raw[si]
		best, bestGap := -1, math.MaxInt
		for _, pi := range postals {
			if used[pi] || extract.Overlaps(st, raw[pi]) {
				continue
			}
			pc := raw[pi]
			gap := pc.Start - st.End
			if pc.End <= st.Start {
				gap = st.Start - pc.End
			}
			if gap <= a.cfg.MergeDistance && gap < bestGap {
				best, bestGap = pi, gap
			}
		}
		if best < 0 {
			continue
		}
		pc := raw[best]
		used[si], used[best] = true, true

		start, end := min(st.Start, pc.Start), max(st.End, pc.End)
		merged = append(merged, Result{
			Match: extract.Match{
				Value:       cleanValue(text[start:end]),
				Confidence:  math.Max(st.Confidence, pc.Confidence),
				Start:       start,
				End:         end,
				MatchedText: text[start:end],
				Method:      MethodCombinedAddress,
				Keywords:    []string{st.Value, pc.Value},
			},
			Type: TypeAddress,
		})
	}

	out := make([]Result, 0, len(raw))
	for i, r := range raw {
		if !used[i] {
			out = append(out, r)
		}
	}
	return append(out, merged...)
}

// attachAlternatives records, on each result, the values of other results
// with a close confidence from a different method, or of the same type with
// a different value. Lists are capped, so they need not be symmetric.
func (a *Advanced) attachAlternatives(results []Result) {
	for i := range results {
		alts := make([]string, 0, a.cfg.MaxAlternatives)
		for j := range results {
			if i == j || len(alts) >= a.cfg.MaxAlternatives {
				continue
			}
			ri, rj := results[i], results[j]
			similar := math.Abs(ri.Confidence-rj.Confidence) < a.cfg.AlternativeDelta && ri.Method != rj.Method
			sameType := ri.Type == rj.Type && !strings.EqualFold(ri.Value, rj.Value)
			if (similar || sameType) && !containsFold(alts, rj.Value) {
				alts = append(alts, rj.Value)
			}
		}
		results[i].Alternatives = alts
	}
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// cutBefore returns the length of the prefix of s before the first boundary.
func cutBefore(boundary *pattern.Pattern, s string) int {
	loc := boundary.Regex.FindStringIndex(s)
	if loc == nil {
		return len(s)
	}
	return loc[0]
}

// trimSpan shrinks [start, end) past surrounding whitespace and punctuation.
func trimSpan(text string, start, end int) (int, int) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !strings.ContainsRune(valueTrimSet, r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !strings.ContainsRune(valueTrimSet, r) {
			break
		}
		end -= size
	}
	return start, end
}

func clueWord(prefix string) string {
	w := strings.ToLower(strings.TrimSpace(prefix))
	return strings.TrimRight(w, " :")
}
