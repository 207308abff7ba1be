package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exterrors "github.com/hrygo/eventsense/internal/errors"
)

func TestDefaultCompiles(t *testing.T) {
	lib, err := Default()
	require.NoError(t, err)
	assert.Equal(t, len(DefaultSpecs()), lib.Len())

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, lib, again, "default library is compiled once")
}

func TestNewCompileFailure(t *testing.T) {
	_, err := New([]Spec{
		{Name: "ok", Group: GroupGuard, Expr: `a+`},
		{Name: "broken", Group: GroupGuard, Expr: `(unclosed`},
	})
	require.Error(t, err)
	assert.True(t, exterrors.IsCode(err, exterrors.ErrCodePatternCompileFailure))
	assert.Contains(t, err.Error(), "broken")
}

func TestGroupOrder(t *testing.T) {
	lib := MustDefault()
	clues := lib.Group(GroupContextClue)
	require.NotEmpty(t, clues)
	assert.Equal(t, ClueAt, clues[0].Name)
	assert.Equal(t, "clue_in", clues[len(clues)-1].Name)

	for i := 1; i < len(clues); i++ {
		assert.GreaterOrEqual(t, clues[i-1].Confidence, clues[i].Confidence,
			"context clues are declared strongest first")
	}
}

func TestGet(t *testing.T) {
	lib := MustDefault()

	p, ok := lib.Get(AddressPostal)
	require.True(t, ok)
	assert.Equal(t, GroupAddress, p.Group)

	_, ok = lib.Get("missing")
	assert.False(t, ok)
	assert.Panics(t, func() { lib.MustGet("missing") })
}

func TestPatterns(t *testing.T) {
	lib := MustDefault()

	tests := []struct {
		pattern string
		input   string
		want    string
	}{
		{AddressStreet, "Meet at 123 Main St, Toronto, M5V 3L9", "123 Main St, Toronto"},
		{AddressStreet, "drop by 42 Wallaby Way tomorrow", "42 Wallaby Way"},
		{AddressPostal, "Meet at 123 Main St, Toronto, M5V 3L9", "M5V 3L9"},
		{AddressLandmark, "Rally at Toronto City Hall", "Toronto City Hall"},
		{Time12, "Dinner at 7pm", "7pm"},
		{Time12, "call at 10:30 a.m. sharp", "10:30 a.m."},
		{TimeRange12, "sync 2-3pm", "2-3pm"},
		{DateMonthDay, "due March 5th, 2025", "March 5th, 2025"},
		{DateISO, "on 2025-01-15", "2025-01-15"},
		{DateWeekday, "see you next Friday", "next Friday"},
		{"title_action_with", "Lunch with Sarah tomorrow", "Lunch with Sarah"},
		{"title_action_with", "meeting with the team at 3", "meeting with the team"},
		{"venue_named_room", "10am in the main conference room", "the main conference room"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			p := lib.MustGet(tt.pattern)
			assert.Equal(t, tt.want, p.Regex.FindString(tt.input))
		})
	}
}

func TestTimeMeridiemNeedsBoundary(t *testing.T) {
	p := MustDefault().MustGet(Time12)
	assert.Empty(t, p.Regex.FindString("12 amazing ideas"))
}

func TestGuards(t *testing.T) {
	lib := MustDefault()

	timePrefix := lib.MustGet(GuardTimePrefix).Regex
	assert.True(t, timePrefix.MatchString("7pm"))
	assert.True(t, timePrefix.MatchString("10:30 with the team"))
	assert.True(t, timePrefix.MatchString("noon"))
	assert.False(t, timePrefix.MatchString("Starbucks"))

	duration := lib.MustGet(GuardDurationPrefix).Regex
	assert.True(t, duration.MatchString("5 minutes"))
	assert.True(t, duration.MatchString("an hour"))
	assert.True(t, duration.MatchString("2.5hrs"))
	assert.True(t, duration.MatchString("a while"))
	assert.True(t, duration.MatchString("the morning"))
	assert.False(t, duration.MatchString("Alberta"))
	assert.False(t, duration.MatchString("5 Guys"), "a number needs a unit to be a duration")
	assert.False(t, duration.MatchString("5 Points Bar"))
	assert.False(t, duration.MatchString("a cafe downtown"))

	meta := lib.MustGet(GuardMetadataLine).Regex
	assert.True(t, meta.MatchString("Due Date: Friday"))
	assert.True(t, meta.MatchString("  item id: 42"))
	assert.False(t, meta.MatchString("Quarterly review"))
}
