// Package backup is the secondary deterministic datetime extractor. It runs
// the natural-language time service over the whole text and reports its
// findings at a confidence that never exceeds the regex-primary extractors.
package backup

import (
	"context"
	"strings"
	"time"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/plugin/ai/aitime"
	"github.com/hrygo/eventsense/plugin/extract"
)

// Confidence bounds of every backup result.
const (
	MinConfidence = 0.6
	MaxConfidence = 0.8
)

// Result is a resolved start and end.
type Result struct {
	Start      *time.Time `json:"start_datetime,omitempty"`
	End        *time.Time `json:"end_datetime,omitempty"`
	Confidence float64    `json:"confidence"`
	Relative   bool       `json:"relative"`
	Matched    []string   `json:"matched,omitempty"`
}

// Found reports whether a start was resolved.
func (r Result) Found() bool { return r.Start != nil }

// Extractor wraps an aitime.Resolver. It is safe for concurrent use.
type Extractor struct {
	svc      aitime.Resolver
	loc      *time.Location
	now      func() time.Time
	duration time.Duration
}

// New returns an extractor resolving against the wall clock in loc.
func New(svc aitime.Resolver, loc *time.Location) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{svc: svc, loc: loc, now: time.Now, duration: time.Hour}
}

// WithClock returns a copy that reads the current time from now.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	c := *e
	c.now = now
	return &c
}

// WithDefaultDuration returns a copy that ends events d after their start.
func (e *Extractor) WithDefaultDuration(d time.Duration) *Extractor {
	c := *e
	if d > 0 {
		c.duration = d
	}
	return &c
}

// Extract resolves a start in text. Unparsable text and date-only matches
// yield an empty Result; only a done context is returned as an error.
func (e *Extractor) Extract(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, nil
	}
	r, err := e.svc.Resolve(ctx, text, e.now().In(e.loc))
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, exerrors.ExtractionTimeout("deterministic backup", ctx.Err())
		}
		return Result{}, nil
	}
	// A date with a made-up clock is left to the caller's defaulting policy.
	if r.DateOnly() || r.Start.IsZero() {
		return Result{}, nil
	}

	start := r.Start.In(e.loc)
	end := start.Add(e.duration)
	return Result{
		Start:      &start,
		End:        &end,
		Confidence: extract.Clamp(r.Certainty, MinConfidence, MaxConfidence),
		Relative:   r.Relative,
		Matched:    r.Matched,
	}, nil
}
