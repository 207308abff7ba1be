package router

import (
	"context"
	"strings"
	"sync"

	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/merge"
	"github.com/hrygo/eventsense/plugin/extract/title"
)

// MockEventParser is a mock implementation of EventParser for testing.
type MockEventParser struct {
	// Events allows tests to override parse results per input text.
	Events map[string]*event.ParsedEvent
	// Titles allows tests to override title results per input text.
	Titles map[string]title.Result
	// Locations allows tests to override location results per input text.
	Locations map[string][]location.Result

	mu    sync.Mutex
	calls []string
}

// NewMockEventParser creates a new MockEventParser.
func NewMockEventParser() *MockEventParser {
	return &MockEventParser{
		Events:    make(map[string]*event.ParsedEvent),
		Titles:    make(map[string]title.Result),
		Locations: make(map[string][]location.Result),
	}
}

// Parse returns the override for text, or a zero-confidence event.
func (m *MockEventParser) Parse(_ context.Context, text, _ string) *event.ParsedEvent {
	m.record("parse:" + text)
	if ev, ok := m.Events[text]; ok {
		return ev.Clone()
	}
	ev := event.New()
	ev.ParsingPath = event.PathRegexPrimary
	ev.RefreshConfirmation()
	return ev
}

// ExtractTitle returns the override for text, or an empty result.
func (m *MockEventParser) ExtractTitle(text string) title.Result {
	m.record("title:" + text)
	if r, ok := m.Titles[text]; ok {
		return r
	}
	return title.Result{Method: title.MethodEmpty}
}

// ExtractLocations returns the override for text, or no locations.
func (m *MockEventParser) ExtractLocations(text string) []location.Result {
	m.record("locations:" + text)
	if r, ok := m.Locations[text]; ok {
		return r
	}
	return []location.Result{}
}

// ExtractAllInformation builds the view from the title and location overrides.
func (m *MockEventParser) ExtractAllInformation(text string) event.Information {
	m.record("info:" + text)
	info := event.Information{}
	if r, ok := m.Titles[text]; ok && r.Found() {
		info.TitleConfidence = r.Confidence
	}
	for _, l := range m.Locations[text] {
		info.Locations = append(info.Locations, l.Match)
	}
	if len(info.Locations) > 0 {
		best := info.Locations[0]
		info.BestLocation = &best
		info.LocationConfidence = best.Confidence
	}
	return info
}

// EnhanceTextForParsing concatenates the fragments with a newline.
func (m *MockEventParser) EnhanceTextForParsing(_ context.Context, text, clipboard string) merge.Result {
	m.record("merge:" + text)
	res := merge.Result{FinalText: strings.TrimSpace(text), Confidence: 1, Metadata: map[string]any{}}
	if clip := strings.TrimSpace(clipboard); clip != "" {
		res.FinalText += "\n" + clip
		res.MergeApplied = true
	}
	return res
}

// Calls returns the recorded operations as "op:text".
func (m *MockEventParser) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEventParser) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

var _ EventParser = (*MockEventParser)(nil)
