package location

import (
	"strings"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Basic is the lightweight location extractor: context clues, venue keywords
// and implicit places scored at their base confidence, without address
// merging or alternatives.
type Basic struct {
	scanner
}

// NewBasic returns a basic extractor over lib.
func NewBasic(lib *pattern.Library) *Basic {
	return &Basic{scanner: newScanner(lib)}
}

// Extract returns non-overlapping candidates sorted by confidence descending.
func (b *Basic) Extract(text string) []extract.Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := make([]Result, 0, 8)
	raw = b.contextClues(text, baseOnly, raw)
	raw = b.keywords(text, b.venues, TypeVenue, baseOnly, raw)
	raw = b.keywords(text, b.implicit, TypeImplicit, baseOnly, raw)

	kept := extract.RemoveOverlaps(raw)
	out := make([]extract.Match, len(kept))
	for i, r := range kept {
		out[i] = r.Match
	}
	return out
}

// Best returns the highest-confidence candidate, if any.
func (b *Basic) Best(text string) (extract.Match, bool) {
	all := b.Extract(text)
	if len(all) == 0 {
		return extract.Match{}, false
	}
	return all[0], true
}
