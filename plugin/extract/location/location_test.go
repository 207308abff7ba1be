package location

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
)

func newAdvanced(t *testing.T, cfg Config) *Advanced {
	t.Helper()
	lib, err := pattern.Default()
	require.NoError(t, err)
	return NewAdvanced(lib, cfg)
}

func TestExtractLocationsScenarios(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())

	tests := []struct {
		name      string
		input     string
		contains  []string
		wantType  Type
		minConf   float64
		wantMatch string
	}{
		{
			name:      "at symbol",
			input:     "Dinner at 7pm @ Starbucks",
			contains:  []string{"Starbucks"},
			wantType:  TypeImplicit,
			minConf:   0.9,
			wantMatch: pattern.ClueAt,
		},
		{
			name:      "at symbol before number-led venue",
			input:     "Lunch @ 5 Guys",
			contains:  []string{"5 Guys"},
			wantType:  TypeImplicit,
			minConf:   0.9,
			wantMatch: pattern.ClueAt,
		},
		{
			name:      "at word before number-led venue",
			input:     "Drinks at 5 Points Bar",
			contains:  []string{"5 Points Bar"},
			wantType:  TypeImplicit,
			minConf:   0.8,
			wantMatch: "clue_at",
		},
		{
			name:      "street and postal code merged",
			input:     "Meet at 123 Main St, Toronto, M5V 3L9",
			contains:  []string{"123 Main St", "M5V 3L9"},
			wantType:  TypeAddress,
			minConf:   0.9,
			wantMatch: MethodCombinedAddress,
		},
		{
			name:      "named room",
			input:     "Team standup\ntomorrow at 10am in the main conference room",
			contains:  []string{"conference room"},
			wantType:  TypeVenue,
			minConf:   0.75,
			wantMatch: "venue_named_room",
		},
		{
			name:      "location label keeps commas",
			input:     "Location: 500 King St W, Toronto\nBring snacks",
			contains:  []string{"500 King St W", "Toronto"},
			wantType:  TypeAddress,
			minConf:   0.9,
			wantMatch: "clue_location_label",
		},
		{
			name:      "directional entrance",
			input:     "Meet near the main entrance at 5",
			contains:  []string{"entrance"},
			wantType:  TypeDirectional,
			minConf:   0.6,
			wantMatch: "directional_entrance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.ExtractLocations(tt.input)
			require.NotEmpty(t, got)
			best := got[0]
			for _, c := range tt.contains {
				assert.Contains(t, best.Value, c)
			}
			assert.Equal(t, tt.wantType, best.Type)
			assert.Equal(t, tt.wantMatch, best.Method)
			assert.GreaterOrEqual(t, best.Confidence, tt.minConf)
		})
	}
}

func TestExtractLocationsCoordinates(t *testing.T) {
	input := "Coordinates: 40.7128, -74.0060"

	t.Run("disabled", func(t *testing.T) {
		got := newAdvanced(t, DefaultConfig()).ExtractLocations(input)
		for _, r := range got {
			assert.NotEqual(t, TypeAddress, r.Type, "unexpected address %q", r.Value)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableCoordinates = true
		got := newAdvanced(t, cfg).ExtractLocations(input)
		require.NotEmpty(t, got)
		assert.Equal(t, TypeAddress, got[0].Type)
		assert.Equal(t, "40.7128, -74.0060", got[0].Value)
	})
}

func TestExtractLocationsClueStrength(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())

	best := func(input string) Result {
		got := a.ExtractLocations(input)
		require.NotEmpty(t, got, input)
		return got[0]
	}

	in := best("Party in Joe's Garage")
	at := best("Party @ Joe's Garage")
	label := best("Party\naddress: Joe's Garage")

	assert.Equal(t, "clue_in", in.Method)
	assert.GreaterOrEqual(t, at.Confidence, in.Confidence)
	assert.GreaterOrEqual(t, label.Confidence, in.Confidence)
}

func TestExtractLocationsRejects(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())

	tests := []struct {
		name   string
		input  string
		method string
	}{
		{"email is not a venue", "email bob@example.com about it", pattern.ClueAt},
		{"time after at", "Call at 3pm", "clue_at"},
		{"duration after in", "Ping me in 5 minutes", "clue_in"},
		{"date after in", "Launch in January", "clue_in"},
		{"stop word", "Look at the", "clue_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, r := range a.ExtractLocations(tt.input) {
				assert.NotEqual(t, tt.method, r.Method, "unexpected %q", r.Value)
			}
		})
	}
}

func TestExtractLocationsInvariants(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())
	inputs := []string{
		"",
		"   ",
		"Dinner at 7pm @ Starbucks",
		"Meet at 123 Main St, Toronto, M5V 3L9",
		"Lunch at the cafe near the library, then class in Room 204 on the 3rd floor",
		"Workshop at City Hall, 100 Queen St W, Toronto ON M5H 2N2 (main entrance)",
		strings.Repeat("at the office ", 50),
	}

	for _, input := range inputs {
		got := a.ExtractLocations(input)
		for i := range got {
			assert.GreaterOrEqual(t, got[i].Confidence, 0.0)
			assert.LessOrEqual(t, got[i].Confidence, 1.0)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence, "sorted by confidence")
			}
			for j := i + 1; j < len(got); j++ {
				assert.False(t, extract.Overlaps(got[i], got[j]), "%q overlaps %q", got[i].Value, got[j].Value)
			}
		}
		assert.Equal(t, got, a.ExtractLocations(input), "idempotent")
	}
}

func TestAttachAlternativesCanBeAsymmetric(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())

	results := make([]Result, 0, 5)
	for i, v := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		results = append(results, Result{
			Match: extract.Match{Value: v, Confidence: 0.9 - 0.05*float64(i), Method: "venue_office"},
			Type:  TypeVenue,
		})
	}
	a.attachAlternatives(results)

	assert.Equal(t, []string{"bravo", "charlie", "delta"}, results[0].Alternatives)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, results[4].Alternatives)
	// echo lists alpha, but alpha's capped list does not include echo.
	assert.NotContains(t, results[0].Alternatives, "echo")
}

func TestAttachAlternativesByMethod(t *testing.T) {
	a := newAdvanced(t, DefaultConfig())

	results := []Result{
		{Match: extract.Match{Value: "Starbucks", Confidence: 0.95, Method: pattern.ClueAt}, Type: TypeImplicit},
		{Match: extract.Match{Value: "Room 4", Confidence: 0.85, Method: "venue_room_number"}, Type: TypeVenue},
		{Match: extract.Match{Value: "the lobby", Confidence: 0.5, Method: "directional_area"}, Type: TypeDirectional},
	}
	a.attachAlternatives(results)

	assert.Equal(t, []string{"Room 4"}, results[0].Alternatives)
	assert.Equal(t, []string{"Starbucks"}, results[1].Alternatives)
	assert.Empty(t, results[2].Alternatives)
}

func TestValid(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"a", false},
		{"the", false},
		{"Tomorrow", false},
		{"1234", false},
		{strings.Repeat("x", 151), false},
		{"Starbucks", true},
		{"Room 4", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, valid(tt.value), tt.value)
	}
}

func TestBasicExtract(t *testing.T) {
	lib, err := pattern.Default()
	require.NoError(t, err)
	b := NewBasic(lib)

	best, ok := b.Best("Dinner at 7pm @ Starbucks")
	require.True(t, ok)
	assert.Equal(t, "Starbucks", best.Value)
	assert.Equal(t, 0.95, best.Confidence)

	_, ok = b.Best("")
	assert.False(t, ok)

	got := b.Extract("Standup in the main conference room, then lunch at the cafe")
	require.NotEmpty(t, got)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			assert.False(t, extract.Overlaps(got[i], got[j]))
		}
	}
}
