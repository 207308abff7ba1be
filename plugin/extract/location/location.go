// Package location extracts event locations from free text.
//
// Advanced runs five strategy families (explicit addresses, context clues,
// venue keywords, implicit places, directional references), scores every
// raw match, then merges street and postal-code fragments, removes
// overlapping spans and records alternatives. Basic is the lighter variant
// used for best-effort single-field extraction.
package location

import (
	"strings"
	"unicode"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Type classifies a location value.
type Type string

const (
	TypeAddress     Type = "ADDRESS"
	TypeVenue       Type = "VENUE"
	TypeImplicit    Type = "IMPLICIT"
	TypeDirectional Type = "DIRECTIONAL"
)

// Result is a scored location candidate.
type Result struct {
	extract.Match
	Type         Type     `json:"location_type"`
	Alternatives []string `json:"alternatives"`
}

// Config tunes the advanced extractor.
type Config struct {
	// EnableCoordinates turns on the latitude/longitude pair pattern.
	EnableCoordinates bool
	// MergeDistance is the largest gap, in bytes, between a street address
	// and a postal code that are merged into one result.
	MergeDistance int
	// AlternativeDelta is the confidence difference under which a candidate
	// found by another method is listed as an alternative.
	AlternativeDelta float64
	// MaxAlternatives caps the alternatives recorded per result.
	MaxAlternatives int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		EnableCoordinates: false,
		MergeDistance:     50,
		AlternativeDelta:  0.2,
		MaxAlternatives:   3,
	}
}

// Bonuses added to a strategy's base confidence.
const (
	bonusIdealLength  = 0.1
	bonusFairLength   = 0.05
	bonusAddressWord  = 0.15
	bonusVenueWord    = 0.1
	bonusPostalCode   = 0.15
	bonusCanadianCity = 0.1
	bonusDigits       = 0.05
	minScore          = 0.1
	maxScore          = 1.0
	minLocationLength = 2
	maxLocationLength = 150
)

// Method tags for results that do not come straight from a library pattern.
const (
	MethodCombinedAddress = "address_combined"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "at": true, "in": true, "on": true, "of": true,
	"to": true, "for": true, "with": true, "by": true, "from": true, "and": true, "or": true,
	"is": true, "are": true, "be": true, "will": true, "can": true, "go": true, "get": true,
	"meet": true, "see": true, "have": true, "do": true, "it": true, "this": true, "that": true,
	"me": true, "you": true, "us": true, "them": true, "here": true, "there": true, "now": true,
	"then": true, "today": true, "tomorrow": true, "tonight": true, "yesterday": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true, "friday": true,
	"saturday": true, "sunday": true, "morning": true, "afternoon": true, "evening": true,
	"night": true, "noon": true, "midnight": true, "least": true, "all": true, "once": true,
}

// scorer holds the lexicons shared by both variants.
type scorer struct {
	address     *pattern.Pattern
	venue       *pattern.Pattern
	directional *pattern.Pattern
	postal      *pattern.Pattern
	city        *pattern.Pattern
}

func newScorer(lib *pattern.Library) scorer {
	return scorer{
		address:     lib.MustGet(pattern.LexiconAddress),
		venue:       lib.MustGet(pattern.LexiconVenue),
		directional: lib.MustGet(pattern.LexiconDirectional),
		postal:      lib.MustGet(pattern.AddressPostal),
		city:        lib.MustGet(pattern.LexiconCity),
	}
}

// score applies the fixed bonuses to base and clamps the result.
func (s scorer) score(base float64, value string) float64 {
	c := base
	switch n := len(value); {
	case n >= 5 && n <= 40:
		c += bonusIdealLength
	case n >= 3 && n <= 60:
		c += bonusFairLength
	}
	switch {
	case s.address.Regex.MatchString(value):
		c += bonusAddressWord
	case s.venue.Regex.MatchString(value):
		c += bonusVenueWord
	}
	if s.postal.Regex.MatchString(value) {
		c += bonusPostalCode
	}
	if s.city.Regex.MatchString(value) {
		c += bonusCanadianCity
	}
	if strings.IndexFunc(value, unicode.IsDigit) >= 0 {
		c += bonusDigits
	}
	return extract.Clamp(c, minScore, maxScore)
}

// classify picks a type by keyword precedence ADDRESS, DIRECTIONAL, VENUE,
// falling back to the strategy's own type.
func (s scorer) classify(value string, fallback Type) Type {
	switch {
	case s.address.Regex.MatchString(value), s.postal.Regex.MatchString(value):
		return TypeAddress
	case s.directional.Regex.MatchString(value):
		return TypeDirectional
	case s.venue.Regex.MatchString(value):
		return TypeVenue
	}
	return fallback
}

// valid rejects empty, too short, too long, letterless and stop-word values.
func valid(value string) bool {
	n := len(value)
	if n < minLocationLength || n > maxLocationLength {
		return false
	}
	if strings.IndexFunc(value, unicode.IsLetter) < 0 {
		return false
	}
	return !stopWords[strings.ToLower(value)]
}

const valueTrimSet = " \t\r\n.,;:!?\"'()[]{}-–—"

var leadingWords = []string{"at ", "in ", "on ", "to "}

// cleanValue collapses whitespace, trims punctuation and drops a leading
// preposition left over from a clue.
func cleanValue(v string) string {
	v = strings.Trim(extract.CollapseSpaces(v), valueTrimSet)
	lower := strings.ToLower(v)
	for _, w := range leadingWords {
		if strings.HasPrefix(lower, w) {
			v = strings.TrimSpace(v[len(w):])
			break
		}
	}
	return v
}
