package aitime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Patterns for time parsing. All are matched against lowercased input.
var (
	// Relative offsets
	relativeInPattern  = regexp.MustCompile(`\bin\s+(\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|half\s+an?)\s+(minute|min|hour|hr|day|week|month)s?\b`)
	relativeAgoPattern = regexp.MustCompile(`\b(\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(minute|min|hour|hr|day|week|month)s?\s+(from\s+now|later|ago)\b`)

	// Date parts
	dayKeywordPattern = regexp.MustCompile(`\b(day\s+after\s+tomorrow|day\s+before\s+yesterday|today|tonight|tomorrow|tmrw|yesterday)\b`)
	weekdayPattern    = regexp.MustCompile(`\b(?:(next|this|last|coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thu|fri)\b`)
	nextWeekPattern   = regexp.MustCompile(`\bnext\s+week\b`)
	endOfWeekPattern  = regexp.MustCompile(`\bend\s+of\s+(?:the\s+)?week\b`)
	isoDatePattern    = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)

	// Clock parts
	endOfDayPattern    = regexp.MustCompile(`\b(?:end\s+of\s+(?:the\s+)?day|eod|close\s+of\s+business|cob)\b`)
	namedTimePattern   = regexp.MustCompile(`\b(noon|midday|midnight)\b`)
	pastPattern        = regexp.MustCompile(`\b(half|quarter)\s+past\s+(\d{1,2})\b`)
	quarterToPattern   = regexp.MustCompile(`\bquarter\s+to\s+(\d{1,2})\b`)
	meridiemPattern    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)(?:\s|$|[^a-z])`)
	hourMinPattern     = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	bareHourPattern    = regexp.MustCompile(`\bat\s+(\d{1,2})(?:\s*o'?clock)?\b`)
	periodWordsPattern = regexp.MustCompile(`\b(morning|afternoon|evening|tonight|night|lunchtime|lunch)\b`)
)

// relDateOffsets maps relative date keywords to day offsets.
var relDateOffsets = map[string]int{
	"today":                0,
	"tonight":              0,
	"tomorrow":             1,
	"tmrw":                 1,
	"day after tomorrow":   2,
	"yesterday":            -1,
	"day before yesterday": -2,
}

// periodHours maps time period keywords to typical hours.
var periodHours = map[string]int{
	"morning":   9,
	"lunch":     12,
	"lunchtime": 12,
	"afternoon": 14,
	"evening":   19,
	"tonight":   20,
	"night":     21,
}

// wordNums maps spelled-out counts to integers.
var wordNums = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

var weekdayMap = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// DefaultHour is used when only a date was found.
const DefaultHour = 9

// Resolution is a resolved expression with the components that produced it.
type Resolution struct {
	Start     time.Time `json:"start"`
	HasDate   bool      `json:"has_date"`
	HasClock  bool      `json:"has_clock"`
	Relative  bool      `json:"relative"`
	Period    string    `json:"period,omitempty"`
	Certainty float64   `json:"certainty"`
	Matched   []string  `json:"matched,omitempty"`
}

// DateOnly reports whether the clock time is a default rather than found.
func (r Resolution) DateOnly() bool {
	return r.HasDate && !r.HasClock && r.Period == ""
}

// Parser parses English time expressions, standalone or embedded in text.
type Parser struct {
	timezone *time.Location
	now      func() time.Time
}

// NewParser creates a parser in timezone whose "now" is read from now.
func NewParser(timezone *time.Location, now func() time.Time) *Parser {
	if timezone == nil {
		timezone = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{timezone: timezone, now: now}
}

// Parse parses a time expression and returns the parsed time.
func (p *Parser) Parse(input string) (time.Time, error) {
	r, err := p.Resolve(input)
	if err != nil {
		return time.Time{}, err
	}
	return r.Start, nil
}

// Resolve finds the time expression in input and reports how it was built.
func (p *Parser) Resolve(input string) (Resolution, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Resolution{}, fmt.Errorf("empty input")
	}

	now := p.now().In(p.timezone)

	// Try standard formats first
	if r, ok := p.tryStandardFormats(input, now); ok {
		return r, nil
	}

	lower := strings.ToLower(input)

	// Try relative offsets (e.g., "in 2 hours")
	if r, ok := p.tryRelativeTime(lower, now); ok {
		return r, nil
	}

	return p.parseEnglishTime(input, lower, now)
}

type layout struct {
	format         string
	hasDate, clock bool
}

var standardLayouts = []layout{
	{time.RFC3339, true, true},
	{"2006-01-02T15:04:05", true, true},
	{"2006-01-02 15:04:05", true, true},
	{"2006-01-02 15:04", true, true},
	{"2006-01-02", true, false},
	{"2006/01/02 15:04", true, true},
	{"2006/01/02", true, false},
	{"01/02/2006 15:04", true, true},
	{"01/02/2006", true, false},
	{"Jan 2, 2006 3:04pm", true, true},
	{"Jan 2, 2006", true, false},
	{"January 2, 2006", true, false},
	{"15:04:05", false, true},
	{"15:04", false, true},
	{"3:04pm", false, true},
	{"3pm", false, true},
}

// tryStandardFormats attempts to parse the whole input as a standard layout.
func (p *Parser) tryStandardFormats(input string, now time.Time) (Resolution, bool) {
	candidate := strings.ToLower(input)
	for _, l := range standardLayouts {
		format := l.format
		text := input
		if strings.Contains(format, "pm") {
			text = candidate
		}
		t, err := time.ParseInLocation(format, text, p.timezone)
		if err != nil {
			continue
		}
		r := Resolution{HasDate: l.hasDate, HasClock: l.clock, Certainty: 0.95, Matched: []string{input}}
		if !l.hasDate {
			// If only time, use today's date
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, p.timezone)
		} else if !l.clock {
			t = time.Date(t.Year(), t.Month(), t.Day(), DefaultHour, 0, 0, 0, p.timezone)
		}
		r.Start = t
		return r, true
	}
	return Resolution{}, false
}

// tryRelativeTime parses relative offsets like "in 2 hours" or "3 days from now".
func (p *Parser) tryRelativeTime(input string, now time.Time) (Resolution, bool) {
	var count, unit, direction, matched string
	if m := relativeInPattern.FindStringSubmatch(input); m != nil {
		matched, count, unit, direction = m[0], m[1], m[2], "later"
	} else if m := relativeAgoPattern.FindStringSubmatch(input); m != nil {
		matched, count, unit, direction = m[0], m[1], m[2], m[3]
	} else {
		return Resolution{}, false
	}

	n, half := parseCount(count)
	sign := 1
	if direction == "ago" {
		sign = -1
	}

	r := Resolution{Relative: true, Certainty: 0.7, Matched: []string{matched}}
	switch unit {
	case "minute", "min":
		r.Start = now.Add(time.Duration(sign*n) * time.Minute)
		r.HasClock = true
	case "hour", "hr":
		d := time.Duration(n) * time.Hour
		if half {
			d = 30 * time.Minute
		}
		r.Start = now.Add(time.Duration(sign) * d)
		r.HasClock = true
	case "day":
		r.Start = now.AddDate(0, 0, sign*n)
		r.HasDate = true
	case "week":
		r.Start = now.AddDate(0, 0, sign*7*n)
		r.HasDate = true
	case "month":
		r.Start = now.AddDate(0, sign*n, 0)
		r.HasDate = true
	default:
		return Resolution{}, false
	}

	// "in 3 days at 5pm" pins the clock on the shifted day.
	if r.HasDate {
		if hour, minute, phrase, ok := parseClock(input); ok {
			r.Start = time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), hour, minute, 0, 0, p.timezone)
			r.HasClock = true
			r.Certainty += 0.1
			r.Matched = append(r.Matched, phrase)
		} else {
			r.Start = time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), DefaultHour, 0, 0, 0, p.timezone)
		}
	}
	return r, true
}

func parseCount(s string) (n int, half bool) {
	if strings.HasPrefix(s, "half") {
		return 0, true
	}
	if v, ok := wordNums[s]; ok {
		return v, false
	}
	n, _ = strconv.Atoi(s)
	return n, false
}

// parseEnglishTime combines a date part and a clock part.
func (p *Parser) parseEnglishTime(input, lower string, now time.Time) (Resolution, error) {
	var r Resolution
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.timezone)

	// Parse date part
	if d, phrase, ok := p.parseDatePart(lower, date); ok {
		date = d
		r.HasDate = true
		r.Matched = append(r.Matched, phrase)
	}

	// Parse time part
	hour, minute, phrase, found := parseClock(lower)
	if found {
		r.HasClock = true
		r.Matched = append(r.Matched, phrase)
	} else if period := periodWordsPattern.FindString(lower); period != "" {
		hour, minute = periodHours[period], 0
		r.Period = period
		r.Matched = append(r.Matched, period)
	}

	switch {
	case r.HasDate && (r.HasClock || r.Period != ""):
		r.Start = time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, p.timezone)
		r.Certainty = 0.8
		if !r.HasClock {
			r.Certainty = 0.65
		}
	case r.HasDate:
		// If only date was found, default to 9:00
		r.Start = time.Date(date.Year(), date.Month(), date.Day(), DefaultHour, 0, 0, 0, p.timezone)
		r.Certainty = 0.6
	case r.HasClock || r.Period != "":
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, p.timezone)
		if start.Before(now) {
			start = start.AddDate(0, 0, 1)
		}
		r.Start = start
		r.Certainty = 0.65
		if !r.HasClock {
			r.Certainty = 0.55
		}
	default:
		return Resolution{}, fmt.Errorf("unable to parse time: %s", input)
	}
	return r, nil
}

// parseDatePart resolves the day relative to today.
func (p *Parser) parseDatePart(lower string, today time.Time) (time.Time, string, bool) {
	if m := isoDatePattern.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, p.timezone)
		if t.Month() == time.Month(mo) && t.Day() == d {
			return t, m[0], true
		}
	}

	// Check relative dates (today/tomorrow/...)
	if m := dayKeywordPattern.FindStringSubmatch(lower); m != nil {
		key := strings.Join(strings.Fields(m[1]), " ")
		return today.AddDate(0, 0, relDateOffsets[key]), m[0], true
	}

	// Check weekday patterns
	if m := weekdayPattern.FindStringSubmatch(lower); m != nil {
		wd := weekdayMap[m[2][:3]]
		ahead := (int(wd) - int(today.Weekday()) + 7) % 7
		switch m[1] {
		case "next", "coming":
			if ahead == 0 {
				ahead = 7
			}
		case "last":
			ahead -= 7
			if ahead == 0 {
				ahead = -7
			}
		}
		return today.AddDate(0, 0, ahead), m[0], true
	}

	if m := endOfWeekPattern.FindString(lower); m != "" {
		ahead := (int(time.Friday) - int(today.Weekday()) + 7) % 7
		return today.AddDate(0, 0, ahead), m, true
	}

	if m := nextWeekPattern.FindString(lower); m != "" {
		// Monday of next week
		ahead := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead), m, true
	}

	return time.Time{}, "", false
}

// parseClock finds an explicit clock time in lowercased input.
func parseClock(lower string) (hour, minute int, phrase string, found bool) {
	if m := endOfDayPattern.FindString(lower); m != "" {
		return 17, 0, m, true
	}

	if m := meridiemPattern.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		if h >= 1 && h <= 12 && mins < 60 {
			pm := strings.HasPrefix(m[3], "p")
			switch {
			case pm && h < 12:
				h += 12
			case !pm && h == 12:
				h = 0
			}
			return h, mins, strings.TrimRight(m[0], " ,.;!?"), true
		}
	}

	if m := hourMinPattern.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return applyPeriod(lower, h), mins, m[0], true
	}

	if m := namedTimePattern.FindString(lower); m != "" {
		if m == "midnight" {
			return 0, 0, m, true
		}
		return 12, 0, m, true
	}

	if m := pastPattern.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[2])
		if h >= 1 && h <= 12 {
			mins := 30
			if m[1] == "quarter" {
				mins = 15
			}
			return applyPeriod(lower, h), mins, m[0], true
		}
	}

	if m := quarterToPattern.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			prev := h - 1
			if prev == 0 {
				prev = 12
			}
			return applyPeriod(lower, prev), 45, m[0], true
		}
	}

	if m := bareHourPattern.FindStringSubmatch(lower); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h >= 1 && h <= 12 {
			return applyPeriod(lower, h), 0, m[0], true
		}
	}

	return 0, 0, "", false
}

// applyPeriod resolves an hour without am/pm.
// - With a PM period word: always PM
// - With "morning": always AM
// - No period + hour 1-6: PM, the common afternoon slot
// - No period + hour 7-11: AM
// - 12 and 24h values stay as written
func applyPeriod(lower string, hour int) int {
	if hour > 12 || hour == 0 {
		return hour
	}
	switch periodWordsPattern.FindString(lower) {
	case "afternoon", "evening", "tonight", "night":
		if hour < 12 {
			return hour + 12
		}
		return hour
	case "morning":
		if hour == 12 {
			return 0
		}
		return hour
	}
	if hour >= 1 && hour <= 6 {
		return hour + 12
	}
	return hour
}
