package event

import (
	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/pattern"
	"github.com/hrygo/eventsense/plugin/extract/title"
)

// Information is the combined title and location view of one text.
type Information struct {
	Titles             []extract.Match `json:"titles"`
	Locations          []extract.Match `json:"locations"`
	BestTitle          *extract.Match  `json:"best_title"`
	BestLocation       *extract.Match  `json:"best_location"`
	TitleConfidence    float64         `json:"title_confidence"`
	LocationConfidence float64         `json:"location_confidence"`
}

// InformationExtractor runs the title strategies and the basic location
// extractor over the same text. It is safe for concurrent use.
type InformationExtractor struct {
	titles    *title.Extractor
	locations *location.Basic
	weights   Weights
}

// NewInformationExtractor builds the extractor over lib.
func NewInformationExtractor(lib *pattern.Library) *InformationExtractor {
	return &InformationExtractor{
		titles:    title.NewExtractor(lib),
		locations: location.NewBasic(lib),
		weights:   DefaultWeights(),
	}
}

// ExtractAllInformation returns ranked title and location candidates; each
// list is free of overlapping spans.
func (x *InformationExtractor) ExtractAllInformation(text string) Information {
	info := Information{
		Titles:    x.titles.Candidates(text),
		Locations: x.locations.Extract(text),
	}
	if info.Titles == nil {
		info.Titles = []extract.Match{}
	}
	if info.Locations == nil {
		info.Locations = []extract.Match{}
	}
	if len(info.Titles) > 0 {
		best := info.Titles[0]
		info.BestTitle = &best
		info.TitleConfidence = best.Confidence
	}
	if len(info.Locations) > 0 {
		best := info.Locations[0]
		info.BestLocation = &best
		info.LocationConfidence = best.Confidence
	}
	return info
}

// CalculateOverallConfidence scores ev with the extractor's weights.
func (x *InformationExtractor) CalculateOverallConfidence(ev *ParsedEvent) float64 {
	return CalculateOverallConfidence(ev, x.weights)
}
