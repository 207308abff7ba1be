// Package extract holds the candidate types shared by the field extractors
// (title, location, datetime) and the span bookkeeping used to resolve
// conflicts between candidates.
package extract

import (
	"sort"
	"strings"
)

// Match is one candidate value for a field, found at [Start, End) in the
// source text. Matches are values: extractors create them fresh per call and
// never mutate them after returning.
type Match struct {
	Value       string   `json:"value"`
	Confidence  float64  `json:"confidence"`
	Start       int      `json:"start_pos"`
	End         int      `json:"end_pos"`
	MatchedText string   `json:"matched_text"`
	Method      string   `json:"extraction_type"`
	Keywords    []string `json:"keywords_used,omitempty"`
}

// Span returns the byte offsets of the match.
func (m Match) Span() (int, int) { return m.Start, m.End }

// Score returns the match confidence.
func (m Match) Score() float64 { return m.Confidence }

// Spanned is anything that occupies a span of the source text with a score.
type Spanned interface {
	Span() (start, end int)
	Score() float64
}

// Overlaps reports whether two half-open spans intersect.
func Overlaps(a, b Spanned) bool {
	as, ae := a.Span()
	bs, be := b.Span()
	return as < be && bs < ae
}

// SortByConfidence orders candidates by confidence descending. Ties go to the
// longer span, then to the earlier start, so the order is deterministic.
func SortByConfidence[T Spanned](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].Score(), items[j].Score()
		if si != sj {
			return si > sj
		}
		is, ie := items[i].Span()
		js, je := items[j].Span()
		if ie-is != je-js {
			return ie-is > je-js
		}
		return is < js
	})
}

// RemoveOverlaps keeps the highest-confidence set of non-overlapping
// candidates. The input slice is not modified; the result is sorted by
// confidence descending.
func RemoveOverlaps[T Spanned](items []T) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	SortByConfidence(sorted)
	return KeepFirst(sorted)
}

// KeepFirst walks items in their given order and drops every candidate that
// overlaps one already kept. Use it when the order encodes priority.
func KeepFirst[T Spanned](items []T) []T {
	kept := make([]T, 0, len(items))
	for _, cand := range items {
		clash := false
		for _, k := range kept {
			if Overlaps(cand, k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, cand)
		}
	}
	return kept
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CollapseSpaces trims s and folds every whitespace run into a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
