// Package datetime is the regex-primary date and time extractor. Date and
// time patterns are tried in priority order; the first valid match of each
// kind is combined into a start/end pair with a blended confidence.
package datetime

import (
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

// Result is the outcome of Extract. Start is nil when no start could be
// resolved; a weekday named without a clock time is reported in WeekdayHint
// and left for the caller's defaulting policy.
type Result struct {
	Start       *time.Time      `json:"start_datetime,omitempty"`
	End         *time.Time      `json:"end_datetime,omitempty"`
	AllDay      bool            `json:"all_day"`
	Confidence  float64         `json:"confidence"`
	HasClock    bool            `json:"has_clock"`
	WeekdayHint string          `json:"weekday_hint,omitempty"`
	Matches     []extract.Match `json:"matches,omitempty"`
}

// Found reports whether a start was resolved.
func (r Result) Found() bool { return r.Start != nil }

// Span returns the union of the matched spans, or (-1, -1).
func (r Result) Span() (int, int) {
	if len(r.Matches) == 0 {
		return -1, -1
	}
	s, e := r.Matches[0].Start, r.Matches[0].End
	for _, m := range r.Matches[1:] {
		s, e = min(s, m.Start), max(e, m.End)
	}
	return s, e
}

const (
	dateOnlyFactor = 0.8
	timeOnlyFactor = 0.85
	bothBonus      = 0.05

	// DefaultDuration is used when no end time or duration is given.
	DefaultDuration = time.Hour
)

// Extractor resolves dates against an injectable clock in a fixed location.
// It is safe for concurrent use.
type Extractor struct {
	loc             *time.Location
	now             func() time.Time
	defaultDuration time.Duration

	dates    []*pattern.Pattern
	weekday  *pattern.Pattern
	times    []*pattern.Pattern
	duration *pattern.Pattern
	allDay   *pattern.Pattern
}

// NewExtractor returns an extractor using the wall clock in loc (UTC when nil).
func NewExtractor(lib *pattern.Library, loc *time.Location) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{
		loc:             loc,
		now:             time.Now,
		defaultDuration: DefaultDuration,
		dates: []*pattern.Pattern{
			lib.MustGet(pattern.DateISO),
			lib.MustGet(pattern.DateMonthDay),
			lib.MustGet(pattern.DateDayMonth),
			lib.MustGet(pattern.DateNumeric),
			lib.MustGet(pattern.DateRelative),
		},
		weekday: lib.MustGet(pattern.DateWeekday),
		times: []*pattern.Pattern{
			lib.MustGet(pattern.TimeRange12),
			lib.MustGet(pattern.TimeRange24),
			lib.MustGet(pattern.Time12),
			lib.MustGet(pattern.Time24),
			lib.MustGet(pattern.TimeNamed),
		},
		duration: lib.MustGet(pattern.DurationFor),
		allDay:   lib.MustGet(pattern.AllDay),
	}
}

// WithClock returns a copy that reads the current time from now.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	c := *e
	c.now = now
	return &c
}

// WithDefaultDuration returns a copy that uses d when no end is given.
func (e *Extractor) WithDefaultDuration(d time.Duration) *Extractor {
	c := *e
	if d > 0 {
		c.defaultDuration = d
	}
	return &c
}

// Location returns the extractor's time zone.
func (e *Extractor) Location() *time.Location { return e.loc }

// Now returns the extractor's current time in its location.
func (e *Extractor) Now() time.Time { return e.now().In(e.loc) }

type dateHit struct {
	year  int
	month time.Month
	day   int
	conf  float64
	match extract.Match
}

type timeHit struct {
	hour, minute       int
	endHour, endMinute int
	hasEnd             bool
	conf               float64
	match              extract.Match
}

type weekdayHit struct {
	day      time.Weekday
	modifier string
	conf     float64
	match    extract.Match
}

// Extract finds the event start and end in text.
func (e *Extractor) Extract(text string) Result {
	var res Result
	if strings.TrimSpace(text) == "" {
		return res
	}
	now := e.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)

	d, hasDate := e.findDate(text, today)
	w, hasWeekday := e.findWeekday(text)
	t, hasTime := e.findTime(text)

	if !hasDate && hasWeekday && hasTime {
		day := NextWeekday(today, w.day, w.modifier != "next" && w.modifier != "coming")
		d = dateHit{year: day.Year(), month: day.Month(), day: day.Day(), conf: w.conf, match: w.match}
		hasDate = true
	}

	switch {
	case hasDate && hasTime:
		start := time.Date(d.year, d.month, d.day, t.hour, t.minute, 0, 0, e.loc)
		res.Start = &start
		res.HasClock = true
		res.Confidence = (d.conf+t.conf)/2 + bothBonus
		res.Matches = append(res.Matches, d.match, t.match)
	case hasDate:
		start := time.Date(d.year, d.month, d.day, 0, 0, 0, 0, e.loc)
		end := start.AddDate(0, 0, 1)
		res.Start, res.End = &start, &end
		res.AllDay = true
		res.Confidence = d.conf * dateOnlyFactor
		res.Matches = append(res.Matches, d.match)
		if m, ok := e.firstMatch(e.allDay, text); ok {
			res.Matches = append(res.Matches, m)
		}
	case hasTime:
		start := time.Date(today.Year(), today.Month(), today.Day(), t.hour, t.minute, 0, 0, e.loc)
		if start.Before(now) {
			start = start.AddDate(0, 0, 1)
		}
		res.Start = &start
		res.HasClock = true
		res.Confidence = t.conf * timeOnlyFactor
		res.Matches = append(res.Matches, t.match)
	case hasWeekday:
		res.WeekdayHint = strings.ToLower(w.day.String())
		res.Matches = append(res.Matches, w.match)
		return res
	default:
		return res
	}

	if res.HasClock {
		end := e.resolveEnd(text, *res.Start, t, &res)
		res.End = &end
	}
	res.Confidence = extract.Clamp(res.Confidence, 0, 1)
	return res
}

func (e *Extractor) resolveEnd(text string, start time.Time, t timeHit, res *Result) time.Time {
	if t.hasEnd {
		end := time.Date(start.Year(), start.Month(), start.Day(), t.endHour, t.endMinute, 0, 0, e.loc)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		return end
	}
	if dur, m, ok := e.findDuration(text); ok {
		res.Matches = append(res.Matches, m)
		return start.Add(dur)
	}
	return start.Add(e.defaultDuration)
}

func (e *Extractor) findDate(text string, today time.Time) (dateHit, bool) {
	for _, p := range e.dates {
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			g := groups(text, loc)
			var (
				y, d int
				m    time.Month
				ok   bool
			)
			switch p.Name {
			case pattern.DateISO:
				y, m, d, ok = atoi(g[1]), time.Month(atoi(g[2])), atoi(g[3]), true
			case pattern.DateMonthDay:
				m, ok = ParseMonth(g[1])
				d, y = atoi(g[2]), atoi(g[3])
			case pattern.DateDayMonth:
				m, ok = ParseMonth(g[2])
				d, y = atoi(g[1]), atoi(g[3])
			case pattern.DateNumeric:
				m, d, y, ok = time.Month(atoi(g[1])), atoi(g[2]), atoi(g[3]), true
				if y > 0 && y < 100 {
					y += 2000
				}
			case pattern.DateRelative:
				day := today.AddDate(0, 0, relativeDays(g[1]))
				y, m, d, ok = day.Year(), day.Month(), day.Day(), true
			}
			if !ok {
				continue
			}
			rollForward := y == 0
			if y == 0 {
				y = today.Year()
			}
			if !validDate(y, m, d) {
				continue
			}
			if rollForward && time.Date(y, m, d, 0, 0, 0, 0, today.Location()).Before(today) {
				y++
			}
			return dateHit{year: y, month: m, day: d, conf: p.Confidence, match: matchOf(text, loc, p)}, true
		}
	}
	return dateHit{}, false
}

func (e *Extractor) findWeekday(text string) (weekdayHit, bool) {
	loc := e.weekday.Regex.FindStringSubmatchIndex(text)
	if loc == nil {
		return weekdayHit{}, false
	}
	g := groups(text, loc)
	wd, ok := ParseWeekday(g[2])
	if !ok {
		return weekdayHit{}, false
	}
	return weekdayHit{
		day:      wd,
		modifier: strings.ToLower(g[1]),
		conf:     e.weekday.Confidence,
		match:    matchOf(text, loc, e.weekday),
	}, true
}

func (e *Extractor) findTime(text string) (timeHit, bool) {
	for _, p := range e.times {
		for _, loc := range p.Regex.FindAllStringSubmatchIndex(text, -1) {
			g := groups(text, loc)
			var (
				h  timeHit
				ok bool
			)
			switch p.Name {
			case pattern.TimeRange12:
				h, ok = range12(g)
			case pattern.TimeRange24:
				h = timeHit{hour: atoi(g[1]), minute: atoi(g[2]), endHour: atoi(g[3]), endMinute: atoi(g[4]), hasEnd: true}
				ok = true
			case pattern.Time12:
				h.hour, ok = to24(atoi(g[1]), g[3])
				h.minute = atoi(g[2])
			case pattern.Time24:
				h.hour, h.minute, ok = atoi(g[1]), atoi(g[2]), true
			case pattern.TimeNamed:
				if strings.EqualFold(g[1], "midnight") {
					h.hour = 0
				} else {
					h.hour = 12
				}
				ok = true
			}
			if !ok {
				continue
			}
			h.conf = p.Confidence
			h.match = matchOf(text, loc, p)
			return h, true
		}
	}
	return timeHit{}, false
}

func (e *Extractor) findDuration(text string) (time.Duration, extract.Match, bool) {
	loc := e.duration.Regex.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, extract.Match{}, false
	}
	g := groups(text, loc)
	var amount float64
	switch n := strings.ToLower(strings.Join(strings.Fields(g[1]), " ")); n {
	case "a", "an", "one":
		amount = 1
	case "two":
		amount = 2
	case "three":
		amount = 3
	case "half a", "half an":
		amount = 0.5
	default:
		v, err := strconv.ParseFloat(n, 64)
		if err != nil || v <= 0 {
			return 0, extract.Match{}, false
		}
		amount = v
	}
	unit := time.Hour
	if strings.HasPrefix(strings.ToLower(g[2]), "m") {
		unit = time.Minute
	}
	return time.Duration(amount * float64(unit)), matchOf(text, loc, e.duration), true
}

func (e *Extractor) firstMatch(p *pattern.Pattern, text string) (extract.Match, bool) {
	loc := p.Regex.FindStringSubmatchIndex(text)
	if loc == nil {
		return extract.Match{}, false
	}
	return matchOf(text, loc, p), true
}

// range12 resolves "2-3pm" style ranges; a missing start meridiem is
// borrowed from the end, flipped when that would put the start after the end.
func range12(g []string) (timeHit, bool) {
	endHour, ok := to24(atoi(g[4]), g[6])
	if !ok {
		return timeHit{}, false
	}
	startMer := g[3]
	inferred := startMer == ""
	if inferred {
		startMer = g[6]
	}
	startHour, ok := to24(atoi(g[1]), startMer)
	if !ok {
		return timeHit{}, false
	}
	startMin, endMin := atoi(g[2]), atoi(g[5])
	if inferred && startHour*60+startMin > endHour*60+endMin {
		startHour = (startHour + 12) % 24
	}
	return timeHit{hour: startHour, minute: startMin, endHour: endHour, endMinute: endMin, hasEnd: true}, true
}

// to24 converts a 12-hour clock reading to 24-hour.
func to24(hour int, meridiem string) (int, bool) {
	if hour < 1 || hour > 12 {
		return 0, false
	}
	pm := strings.HasPrefix(strings.ToLower(meridiem), "p")
	switch {
	case hour == 12 && !pm:
		return 0, true
	case hour == 12:
		return 12, true
	case pm:
		return hour + 12, true
	}
	return hour, true
}

func relativeDays(word string) int {
	switch w := strings.ToLower(strings.Join(strings.Fields(word), " ")); w {
	case "tomorrow":
		return 1
	case "day after tomorrow":
		return 2
	}
	return 0
}

func validDate(y int, m time.Month, d int) bool {
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Month() == m && t.Day() == d
}

// groups returns the submatches of loc, with "" for groups that did not take part.
func groups(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func matchOf(text string, loc []int, p *pattern.Pattern) extract.Match {
	return extract.Match{
		Value:       text[loc[0]:loc[1]],
		Confidence:  p.Confidence,
		Start:       loc[0],
		End:         loc[1],
		MatchedText: text[loc[0]:loc[1]],
		Method:      p.Name,
	}
}
