// Package router provides the confidence router that turns free text into a
// calendar event. It is consumed by the HTTP handlers and the CLI.
package router

import (
	"context"

	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/merge"
	"github.com/hrygo/eventsense/plugin/extract/title"
)

// EventParser defines the parsing surface.
// Consumers: server/router/api/v1, cmd/eventsense
type EventParser interface {
	// Parse runs the full pipeline over text and an optional clipboard
	// fragment. It never fails; problems are reported in the event metadata.
	// Layers: cache -> regex primary -> deterministic backup -> LLM fallback
	Parse(ctx context.Context, text, clipboard string) *event.ParsedEvent

	// ExtractTitle returns the best title of text.
	ExtractTitle(text string) title.Result

	// ExtractLocations returns the ranked, non-overlapping locations of text.
	ExtractLocations(text string) []location.Result

	// ExtractAllInformation returns title and location candidates of text.
	ExtractAllInformation(text string) event.Information

	// EnhanceTextForParsing merges and rewrites text ahead of extraction.
	EnhanceTextForParsing(ctx context.Context, text, clipboard string) merge.Result
}

var _ EventParser = (*HybridParser)(nil)
