package merge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventsense/plugin/extract/datetime"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

type stubEnhancer struct {
	available bool
	out       Enhancement
	err       error
	calls     int
}

func (s *stubEnhancer) IsAvailable() bool { return s.available }

func (s *stubEnhancer) Enhance(_ context.Context, _ string) (Enhancement, error) {
	s.calls++
	return s.out, s.err
}

func newHelper(opts ...Option) *Helper {
	return NewHelper(pattern.MustDefault(), Config{}, opts...)
}

func TestShouldMergeWithClipboard(t *testing.T) {
	h := newHelper()
	long := "Quarterly planning meeting " + strings.Repeat("agenda notes ", 50)

	tests := []struct {
		name      string
		text      string
		clipboard string
		want      bool
		reason    string
	}{
		{"event and time", "Team standup", "tomorrow at 10am in the main conference room", true, ReasonEventTime},
		{"time and event reversed", "Friday 3pm", "Dinner with the team", true, ReasonEventTime},
		{"location and event", "Room 204, second floor", "Chemistry lab session", true, ReasonLocationEvent},
		{"sequential continuation", "Bring the slides", "and the projector", true, ReasonSequential},
		{"terminal punctuation blocks sequence", "Bring the slides.", "and the projector", false, ReasonUnrelated},
		{"unrelated", "Buy milk", "Pay rent", false, ReasonUnrelated},
		{"duplicate", "Dinner at 7pm", "dinner at 7pm", false, ReasonDuplicate},
		{"empty clipboard", "Dinner", "   ", false, ReasonEmptyFragment},
		{"length ratio", long, "3pm", false, ReasonLengthRatio},
		{"short fragments skip ratio gate", "Dinner", "7pm", true, ReasonEventTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := h.decide(tt.text, tt.clipboard)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.reason, reason)
			assert.Equal(t, tt.want, h.ShouldMergeWithClipboard(tt.text, tt.clipboard))
		})
	}
}

func TestShouldMergeWithClipboard_CombinedCap(t *testing.T) {
	h := NewHelper(pattern.MustDefault(), Config{MaxCombinedLength: 100, LongFragmentThreshold: 1000})
	for _, n := range []int{1, 10, 50, 99} {
		text := "Team standup " + strings.Repeat("x", n)
		clip := strings.Repeat(" ", max(0, 101-len(text))) + "tomorrow at 10am"
		require.Greater(t, len(text)+len(clip), 100)
		assert.False(t, h.ShouldMergeWithClipboard(text, clip), "n=%d", n)
	}

	d := newHelper()
	assert.False(t, d.ShouldMergeWithClipboard(strings.Repeat("meeting ", 400), strings.Repeat("at 3pm ", 400)))
}

func TestEnhanceTextForParsing_Merges(t *testing.T) {
	h := newHelper()
	res := h.EnhanceTextForParsing(context.Background(), "Team standup", "tomorrow at 10am in the main conference room")

	assert.True(t, res.MergeApplied)
	assert.False(t, res.EnhancementApplied)
	assert.Equal(t, "Team standup\ntomorrow at 10am in the main conference room", res.FinalText)
	assert.Equal(t, ReasonEventTime, res.Metadata["merge_reason"])

	locs := location.NewAdvanced(pattern.MustDefault(), location.Config{}).ExtractLocations(res.FinalText)
	found := false
	for _, l := range locs {
		if strings.Contains(l.Value, "conference room") {
			found = true
		}
	}
	assert.True(t, found, "locations: %+v", locs)
}

func TestEnhanceTextForParsing_Inputs(t *testing.T) {
	h := newHelper()

	empty := h.EnhanceTextForParsing(context.Background(), "  ", "")
	assert.Empty(t, empty.FinalText)
	assert.Zero(t, empty.Confidence)
	assert.Equal(t, []string{"INPUT_INVALID"}, empty.Metadata["errors"])

	clipOnly := h.EnhanceTextForParsing(context.Background(), "", "Lunch at noon")
	assert.Equal(t, "Lunch at noon", clipOnly.FinalText)
	assert.False(t, clipOnly.MergeApplied)
	assert.Equal(t, "clipboard", clipOnly.Metadata["source"])

	declined := h.EnhanceTextForParsing(context.Background(), "Buy milk", "Pay rent")
	assert.Equal(t, "Buy milk", declined.FinalText)
	assert.False(t, declined.MergeApplied)
	assert.Equal(t, 1.0, declined.Confidence)
}

func TestRewriteKnownPhrasings(t *testing.T) {
	h := newHelper()
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "weekday",
			input: "On Monday the grade 3 students will attend a science fair.",
			want:  "Science fair on Monday for grade 3 students.",
			ok:    true,
		},
		{
			name:  "month date with trailing text",
			input: "Reminder: on March 3rd, the senior students will host the spring concert. Parents welcome",
			want:  "Reminder: Spring concert on March 3rd for senior students. Parents welcome",
			ok:    true,
		},
		{
			name:  "no match",
			input: "Dinner at 7pm @ Starbucks",
			want:  "Dinner at 7pm @ Starbucks",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.RewriteKnownPhrasings(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	res := h.EnhanceTextForParsing(context.Background(), "On Friday the grade 5 students will visit the museum.", "")
	assert.Equal(t, "Museum on Friday for grade 5 students.", res.FinalText)
	assert.Equal(t, pattern.RewriteStudentEvent, res.Metadata["rule_rewrite"])
	assert.InDelta(t, rewrittenConfidence, res.Confidence, 1e-9)
}

func TestEnhanceTextForParsing_Enhancer(t *testing.T) {
	text := "On Monday the grade 3 students will attend a science fair."
	tests := []struct {
		name         string
		enabled      bool
		enhancer     *stubEnhancer
		wantApplied  bool
		wantText     string
		wantCalls    int
		wantErrCodes any
	}{
		{
			name:        "accepted above threshold",
			enabled:     true,
			enhancer:    &stubEnhancer{available: true, out: Enhancement{Text: "Science Fair, Monday", Confidence: 0.9}},
			wantApplied: true,
			wantText:    "Science Fair, Monday",
			wantCalls:   1,
		},
		{
			name:      "threshold is exclusive",
			enabled:   true,
			enhancer:  &stubEnhancer{available: true, out: Enhancement{Text: "x", Confidence: 0.6}},
			wantText:  "Science fair on Monday for grade 3 students.",
			wantCalls: 1,
		},
		{
			name:         "error falls back to rules",
			enabled:      true,
			enhancer:     &stubEnhancer{available: true, err: errors.New("connection refused")},
			wantText:     "Science fair on Monday for grade 3 students.",
			wantCalls:    1,
			wantErrCodes: []string{"COLLABORATOR_UNAVAILABLE"},
		},
		{
			name:     "unavailable is skipped",
			enabled:  true,
			enhancer: &stubEnhancer{available: false},
			wantText: "Science fair on Monday for grade 3 students.",
		},
		{
			name:     "disabled is skipped",
			enhancer: &stubEnhancer{available: true, out: Enhancement{Text: "x", Confidence: 0.99}},
			wantText: "Science fair on Monday for grade 3 students.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHelper(pattern.MustDefault(), Config{EnableLLMEnhancement: tt.enabled}, WithEnhancer(tt.enhancer))
			res := h.EnhanceTextForParsing(context.Background(), text, "")
			assert.Equal(t, tt.wantApplied, res.EnhancementApplied)
			assert.Equal(t, tt.wantText, res.FinalText)
			assert.Equal(t, tt.wantCalls, tt.enhancer.calls)
			assert.Equal(t, tt.wantErrCodes, res.Metadata["errors"])
		})
	}
}

func TestApplySaferDefaults(t *testing.T) {
	// Wednesday 2025-01-15 08:00 UTC.
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	dt := datetime.NewExtractor(pattern.MustDefault(), time.UTC).WithClock(func() time.Time { return now })
	policy := DefaultSaferPolicy()

	t.Run("weekday without time", func(t *testing.T) {
		ev := event.New()
		ev.Title = "Book club"
		require.True(t, ApplySaferDefaults(ev, "Book club Friday", dt, policy))
		require.NotNil(t, ev.Start)
		require.NotNil(t, ev.End)
		assert.Equal(t, time.Date(2025, 1, 17, 9, 0, 0, 0, time.UTC), *ev.Start)
		assert.Equal(t, time.Date(2025, 1, 17, 10, 0, 0, 0, time.UTC), *ev.End)
		assert.True(t, ev.NeedsConfirmation)
		assert.Equal(t, event.SourceDefault, ev.FieldResults[event.FieldStart].Source)
		assert.Equal(t, true, ev.Metadata["safer_defaults_applied"])
	})

	t.Run("same weekday rolls a week", func(t *testing.T) {
		ev := event.New()
		require.True(t, ApplySaferDefaults(ev, "Piano lesson Wednesday", dt, policy))
		assert.Equal(t, time.Date(2025, 1, 22, 9, 0, 0, 0, time.UTC), *ev.Start)
	})

	t.Run("start already present", func(t *testing.T) {
		ev := event.New()
		s := now.Add(time.Hour)
		ev.Start = &s
		assert.False(t, ApplySaferDefaults(ev, "Book club Friday", dt, policy))
		assert.Equal(t, s, *ev.Start)
	})

	t.Run("no weekday", func(t *testing.T) {
		ev := event.New()
		assert.False(t, ApplySaferDefaults(ev, "Book club sometime", dt, policy))
		assert.Nil(t, ev.Start)
		assert.False(t, ev.NeedsConfirmation)
	})

	t.Run("nil event", func(t *testing.T) {
		assert.False(t, ApplySaferDefaults(nil, "Friday", dt, policy))
	})
}
