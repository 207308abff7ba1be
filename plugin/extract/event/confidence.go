package event

import (
	"github.com/hrygo/eventsense/plugin/extract"
)

// Weights are the tunable constants of the overall-confidence blend.
type Weights struct {
	Title        float64
	DateTime     float64
	Location     float64
	Completeness float64

	// Completeness shares per present field.
	TitlePresence    float64
	DateTimePresence float64
	LocationPresence float64

	// Multiplicative penalties for missing fields.
	MissingTitle    float64
	MissingDateTime float64
}

// DefaultWeights returns the tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		Title:            0.3,
		DateTime:         0.4,
		Location:         0.2,
		Completeness:     0.1,
		TitlePresence:    0.4,
		DateTimePresence: 0.4,
		LocationPresence: 0.2,
		MissingTitle:     0.7,
		MissingDateTime:  0.5,
	}
}

// CalculateOverallConfidence blends the per-field confidences of ev with w.
// The result never exceeds the highest per-field confidence it was derived
// from and is always in [0, 1].
func CalculateOverallConfidence(ev *ParsedEvent, w Weights) float64 {
	if ev == nil {
		return 0
	}
	var t, d, l float64
	var completeness float64
	if ev.HasTitle() {
		t = ev.FieldConfidence(FieldTitle)
		completeness += w.TitlePresence
	}
	if ev.HasStart() {
		d = ev.FieldConfidence(FieldStart)
		completeness += w.DateTimePresence
	}
	if ev.HasLocation() {
		l = ev.FieldConfidence(FieldLocation)
		completeness += w.LocationPresence
	}

	score := w.Title*t + w.DateTime*d + w.Location*l + w.Completeness*completeness
	if !ev.HasTitle() {
		score *= w.MissingTitle
	}
	if !ev.HasStart() {
		score *= w.MissingDateTime
	}
	return extract.Clamp(min(score, max(t, d, l)), 0, 1)
}
