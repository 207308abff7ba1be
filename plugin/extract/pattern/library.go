// Package pattern holds the compiled regular-expression sets shared by the
// extractors. A Library is compiled once at startup and is read-only
// afterwards, so one instance is safely shared by concurrent requests.
package pattern

import (
	"regexp"
	"sync"

	exterrors "github.com/hrygo/eventsense/internal/errors"
)

// Group names a family of patterns.
type Group string

const (
	GroupAddress     Group = "address"
	GroupContextClue Group = "context_clue"
	GroupVenue       Group = "venue"
	GroupImplicit    Group = "implicit"
	GroupDirectional Group = "directional"

	GroupTitleLabel     Group = "title_label"
	GroupTitleKeyword   Group = "title_keyword"
	GroupTitleQuoted    Group = "title_quoted"
	GroupTitleAction    Group = "title_action"
	GroupTitleEventType Group = "title_event_type"
	GroupTitleContext   Group = "title_context"
	GroupTitleSentence  Group = "title_sentence"

	GroupDate     Group = "date"
	GroupTime     Group = "time"
	GroupDuration Group = "duration"

	// GroupGuard holds helper patterns: rejection guards, boundaries and lexicons.
	GroupGuard Group = "guard"
)

// Spec is the uncompiled form of a pattern.
type Spec struct {
	Name       string
	Group      Group
	Expr       string
	Confidence float64
}

// Pattern is a compiled pattern with its base confidence.
type Pattern struct {
	Name       string
	Group      Group
	Regex      *regexp.Regexp
	Confidence float64
}

// Library is an immutable set of compiled patterns.
type Library struct {
	byName  map[string]*Pattern
	byGroup map[Group][]*Pattern
}

// New compiles specs into a Library. Group order follows spec order.
// A spec that fails to compile aborts construction with a
// PATTERN_COMPILE_FAILURE error.
func New(specs []Spec) (*Library, error) {
	lib := &Library{
		byName:  make(map[string]*Pattern, len(specs)),
		byGroup: make(map[Group][]*Pattern),
	}
	for _, s := range specs {
		re, err := regexp.Compile(s.Expr)
		if err != nil {
			return nil, exterrors.PatternCompileFailure(s.Name, err)
		}
		p := &Pattern{Name: s.Name, Group: s.Group, Regex: re, Confidence: s.Confidence}
		lib.byName[s.Name] = p
		lib.byGroup[s.Group] = append(lib.byGroup[s.Group], p)
	}
	return lib, nil
}

var defaultLibrary = sync.OnceValues(func() (*Library, error) {
	return New(DefaultSpecs())
})

// Default returns the process-wide library built from DefaultSpecs.
// It compiles on first use only.
func Default() (*Library, error) {
	return defaultLibrary()
}

// MustDefault is Default for program start-up; it panics on a compile failure.
func MustDefault() *Library {
	lib, err := Default()
	if err != nil {
		panic(err)
	}
	return lib
}

// Group returns the patterns of a group in declaration order.
func (l *Library) Group(g Group) []*Pattern {
	return l.byGroup[g]
}

// Get returns the named pattern.
func (l *Library) Get(name string) (*Pattern, bool) {
	p, ok := l.byName[name]
	return p, ok
}

// MustGet returns the named pattern or panics. Extractors call it at
// construction time only.
func (l *Library) MustGet(name string) *Pattern {
	p, ok := l.byName[name]
	if !ok {
		panic("pattern: unknown pattern " + name)
	}
	return p
}

// Len returns the number of compiled patterns.
func (l *Library) Len() int {
	return len(l.byName)
}
