// Package timeout defines centralized timeout constants for parsing operations.
package timeout

import "time"

// Parse timeout constants. Configuration overrides the first three; the
// constants are used when a component is built without a profile.
const (
	// ParseTimeout is the wall-clock budget of one parse request.
	ParseTimeout = 10 * time.Second

	// FieldTimeout is the budget of a single field extractor.
	FieldTimeout = 2 * time.Second

	// LLMTimeout is the budget of one LLM provider call.
	LLMTimeout = 8 * time.Second

	// CacheTimeout bounds a cache lookup or write so a slow tier never
	// dominates the parse budget.
	CacheTimeout = 250 * time.Millisecond

	// ShutdownTimeout is the grace period of the HTTP server.
	ShutdownTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)

// Truncate shortens s to MaxTruncateLength runes for logging.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxTruncateLength {
		return s
	}
	return string(r[:MaxTruncateLength]) + "..."
}
