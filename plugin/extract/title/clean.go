package title

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hrygo/eventsense/plugin/extract"
)

var (
	prefixRegex    = regexp.MustCompile(`(?i)^(?:re|fwd|fw|reminder|subject|title)\s*:\s*`)
	bracketedRegex = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)
)

const (
	surroundingPunct = " \t.,;:!?-–—\"'“”‘’*_#~`"
	// plainPunct is punctuation that does not by itself mark a stylized title.
	plainPunct = "'’&-.,:/!?#+"

	maxAcronymLength = 8
)

// Clean normalizes a raw title candidate: known reply/reminder prefixes,
// bracketed asides and surrounding punctuation are removed, whitespace is
// collapsed and casing is normalized. Acronyms, mixed-case strings and
// strings with symbols or emoji keep their casing. Invalid UTF-8 is dropped.
func Clean(raw string) string {
	s := extract.CollapseSpaces(strings.ToValidUTF8(raw, ""))
	for {
		stripped := prefixRegex.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = bracketedRegex.ReplaceAllString(s, "")
	s = extract.CollapseSpaces(s)
	s = strings.Trim(s, surroundingPunct)
	return normalizeCase(s)
}

func normalizeCase(s string) string {
	if s == "" || hasSymbols(s) {
		return s
	}
	var upper, lower bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	switch {
	case upper && lower:
		return s
	case upper && utf8.RuneCountInString(s) <= maxAcronymLength:
		return s
	case !upper && !lower:
		return s
	}
	// cases.Caser is stateful, so one is created per call.
	return cases.Title(language.English).String(strings.ToLower(s))
}

func hasSymbols(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(plainPunct, r) {
			continue
		}
		return true
	}
	return false
}
