// Package aitime resolves English natural-time phrases ("tomorrow at 3pm",
// "this evening", "in 2 hours") for the deterministic backup parser.
package aitime

import (
	"context"
	"time"
)

// Resolver finds a time expression embedded in free text.
type Resolver interface {
	// Resolve locates the first time expression in text, interprets it
	// relative to reference and reports which components it was built from.
	Resolve(ctx context.Context, text string, reference time.Time) (Resolution, error)
}
