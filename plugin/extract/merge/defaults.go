package merge

import (
	"time"

	"github.com/hrygo/eventsense/plugin/extract/datetime"
	"github.com/hrygo/eventsense/plugin/extract/event"
)

// DefaultPolicy is the window substituted for a weekday named without a time.
type DefaultPolicy struct {
	StartHour  int
	Duration   time.Duration
	Confidence float64
}

// DefaultSaferPolicy returns 9:00 to 10:00 at confidence 0.5.
func DefaultSaferPolicy() DefaultPolicy {
	return DefaultPolicy{StartHour: 9, Duration: time.Hour, Confidence: 0.5}
}

// ApplySaferDefaults fills a missing start when text names a weekday without
// a clock time. The window is placed on the next occurrence of that weekday
// strictly after today and the event is flagged for confirmation. It reports
// whether a default was applied.
func ApplySaferDefaults(ev *event.ParsedEvent, text string, dt *datetime.Extractor, p DefaultPolicy) bool {
	if ev == nil || ev.HasStart() {
		return false
	}
	res := dt.Extract(text)
	if res.Found() || res.HasClock || res.WeekdayHint == "" {
		return false
	}
	wd, ok := datetime.ParseWeekday(res.WeekdayHint)
	if !ok {
		return false
	}
	if p.Duration <= 0 {
		p.Duration = time.Hour
	}

	now := dt.Now()
	day := datetime.NextWeekday(now, wd, false)
	start := time.Date(day.Year(), day.Month(), day.Day(), p.StartHour, 0, 0, 0, dt.Location())
	end := start.Add(p.Duration)

	ev.Start, ev.End = &start, &end
	ev.AllDay = false
	ev.SetField(event.FieldStart, &event.FieldResult{
		Value:      start.Format(time.RFC3339),
		Source:     event.SourceDefault,
		Confidence: p.Confidence,
		Start:      -1,
		End:        -1,
	})
	ev.SetField(event.FieldEnd, &event.FieldResult{
		Value:      end.Format(time.RFC3339),
		Source:     event.SourceDefault,
		Confidence: p.Confidence,
		Start:      -1,
		End:        -1,
	})
	ev.NeedsConfirmation = true
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	ev.Metadata["safer_defaults_applied"] = true
	ev.Metadata["default_weekday"] = res.WeekdayHint
	return true
}
