package aitime

import (
	"context"
	"time"
)

// Service is the rule-based Resolver.
type Service struct {
	loc *time.Location
}

// NewService creates a Service. An unknown zone falls back to UTC.
func NewService(timezone string) *Service {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Service{loc: loc}
}

// Resolve finds a time expression in text relative to reference. A zero
// reference means the current time in the service zone.
func (s *Service) Resolve(ctx context.Context, text string, reference time.Time) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if reference.IsZero() {
		reference = time.Now().In(s.loc)
	}
	return s.parserAt(reference).Resolve(text)
}

// parserAt anchors a parser at reference so relative phrases are stable.
func (s *Service) parserAt(reference time.Time) *Parser {
	loc := reference.Location()
	if loc == nil {
		loc = s.loc
	}
	return NewParser(loc, func() time.Time { return reference })
}

var _ Resolver = (*Service)(nil)
