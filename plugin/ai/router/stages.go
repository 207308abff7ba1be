package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/plugin/ai"
	"github.com/hrygo/eventsense/plugin/extract"
	"github.com/hrygo/eventsense/plugin/extract/datetime"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/plugin/extract/location"
	"github.com/hrygo/eventsense/plugin/extract/merge"
	"github.com/hrygo/eventsense/plugin/extract/title"
)

// route runs the stages over the prepared text within the parse budget.
// Layer 1: regex primary (field fan-out)
// Layer 2: deterministic backup for a missing or weak start
// Layer 3: LLM fallback, accepted field by field
func (p *HybridParser) route(ctx context.Context, rc *observability.RequestContext, text string) *event.ParsedEvent {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	ev := event.New()
	ev.ParsingPath = event.PathRegexPrimary
	ev.Description = text

	p.extractFields(ctx, rc, text, ev)
	if p.finished(ctx, rc, ev) {
		return p.finish(ctx, text, ev)
	}

	if p.cfg.EnableBackup && ev.FieldConfidence(event.FieldStart) < p.cfg.Threshold {
		p.runBackup(ctx, rc, text, ev)
		if p.finished(ctx, rc, ev) {
			return p.finish(ctx, text, ev)
		}
	}

	if p.provider.IsAvailable() {
		p.runLLM(ctx, rc, text, ev)
	} else {
		rc.Debug("llm fallback skipped", slog.String("provider", p.provider.Name()))
	}
	return p.finish(ctx, text, ev)
}

// finished rescores ev and reports whether routing can stop, either because
// the accept policy holds or because the budget is spent.
func (p *HybridParser) finished(ctx context.Context, rc *observability.RequestContext, ev *event.ParsedEvent) bool {
	ev.Confidence = event.CalculateOverallConfidence(ev, event.DefaultWeights())
	if ctx.Err() != nil {
		return true
	}
	ok, err := p.policy.Accept(ev)
	if err != nil {
		rc.Warn("accept policy failed", slog.String("error", err.Error()))
		return false
	}
	if ok {
		rc.Debug("stage accepted",
			slog.String(observability.LogFieldParsingPath, string(ev.ParsingPath)),
			slog.Float64("confidence", ev.Confidence),
		)
	}
	return ok
}

// finish marks timeouts, applies the weekday default and the final
// confirmation flag.
func (p *HybridParser) finish(ctx context.Context, text string, ev *event.ParsedEvent) *event.ParsedEvent {
	if ctx.Err() != nil {
		ev.ParsingPath = event.PathTimeout
		ev.NeedsConfirmation = true
		ev.AddError(string(exerrors.ErrCodeExtractionTimeout))
	}
	if merge.ApplySaferDefaults(ev, text, p.clock, p.cfg.Defaults) {
		ev.Confidence = event.CalculateOverallConfidence(ev, event.DefaultWeights())
	}
	ev.RefreshConfirmation()
	return ev
}

// runField runs fn under the field budget. fn is pure, so a late result is
// simply discarded.
func runField[T any](ctx context.Context, budget time.Duration, fn func() T) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ch := make(chan T, 1)
	go func() { ch <- fn() }()
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// extractFields fans the three field extractors out and merges what came
// back in time. A field that misses its budget is left empty.
func (p *HybridParser) extractFields(ctx context.Context, rc *observability.RequestContext, text string, ev *event.ParsedEvent) {
	var (
		tr    title.Result
		dr    datetime.Result
		lr    []location.Result
		tDur  time.Duration
		dDur  time.Duration
		lDur  time.Duration
		tErr  error
		dErr  error
		lErr  error
		group errgroup.Group
	)
	group.Go(func() error {
		start := time.Now()
		tr, tErr = runField(ctx, p.cfg.FieldTimeout, func() title.Result { return p.titles.ExtractTitle(text) })
		tDur = time.Since(start)
		return fieldErr(event.FieldTitle, tErr)
	})
	group.Go(func() error {
		start := time.Now()
		dr, dErr = runField(ctx, p.cfg.FieldTimeout, func() datetime.Result { return p.dates.Extract(text) })
		dDur = time.Since(start)
		return fieldErr(event.FieldStart, dErr)
	})
	group.Go(func() error {
		start := time.Now()
		lr, lErr = runField(ctx, p.cfg.FieldTimeout, func() []location.Result { return p.locations.ExtractLocations(text) })
		lDur = time.Since(start)
		return fieldErr(event.FieldLocation, lErr)
	})
	if err := group.Wait(); err != nil {
		rc.Debug("field fan-out incomplete", slog.String("error", err.Error()))
	}

	p.fieldTimedOut(rc, ev, event.FieldTitle, tErr)
	p.fieldTimedOut(rc, ev, event.FieldStart, dErr)
	p.fieldTimedOut(rc, ev, event.FieldLocation, lErr)

	if tErr == nil && tr.Found() {
		s, e := spanOf(text, tr.Title)
		ev.Title = tr.Title
		ev.SetField(event.FieldTitle, &event.FieldResult{
			Value:          tr.Title,
			Source:         event.SourceRegex,
			Confidence:     tr.Confidence,
			Start:          s,
			End:            e,
			ProcessingTime: tDur,
		})
	}

	if dErr == nil && dr.Found() {
		s, e := dr.Span()
		ev.Start, ev.End, ev.AllDay = dr.Start, dr.End, dr.AllDay
		ev.SetField(event.FieldStart, &event.FieldResult{
			Value:          dr.Start.Format(time.RFC3339),
			Source:         event.SourceRegex,
			Confidence:     dr.Confidence,
			Start:          s,
			End:            e,
			ProcessingTime: dDur,
		})
		if dr.End != nil {
			ev.SetField(event.FieldEnd, &event.FieldResult{
				Value:          dr.End.Format(time.RFC3339),
				Source:         event.SourceRegex,
				Confidence:     dr.Confidence,
				Start:          s,
				End:            e,
				ProcessingTime: dDur,
			})
		}
	}

	if lErr == nil && len(lr) > 0 {
		best := lr[0]
		ev.Location = best.Value
		ev.SetField(event.FieldLocation, &event.FieldResult{
			Value:          best.Value,
			Source:         event.SourceRegex,
			Confidence:     best.Confidence,
			Start:          best.Start,
			End:            best.End,
			Alternatives:   best.Alternatives,
			ProcessingTime: lDur,
		})
	}
}

func fieldErr(field event.Field, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", field, err)
}

func (p *HybridParser) fieldTimedOut(rc *observability.RequestContext, ev *event.ParsedEvent, field event.Field, err error) {
	if err == nil {
		return
	}
	p.metrics.RecordFieldTimeout(string(field))
	ev.AddError(string(exerrors.ErrCodeExtractionTimeout))
	timedOut, _ := ev.Metadata["timed_out_fields"].([]string)
	ev.Metadata["timed_out_fields"] = append(timedOut, string(field))
	rc.Warn("field extraction timed out",
		slog.String(observability.LogFieldField, string(field)),
		slog.String(observability.LogFieldErrorCode, string(exerrors.ErrCodeExtractionTimeout)),
	)
}

// runBackup replaces the start when the backup parser is more confident.
func (p *HybridParser) runBackup(ctx context.Context, rc *observability.RequestContext, text string, ev *event.ParsedEvent) {
	started := time.Now()
	res, err := p.backup.Extract(ctx, text)
	if err != nil {
		ev.AddError(string(exerrors.GetCodeFromError(err, exerrors.ErrCodeExtractionTimeout)))
		rc.Warn("deterministic backup failed", slog.String("error", err.Error()))
		return
	}
	if !res.Found() || res.Confidence <= ev.FieldConfidence(event.FieldStart) {
		rc.Debug("deterministic backup produced nothing better")
		return
	}

	ev.Start, ev.End, ev.AllDay = res.Start, res.End, false
	for _, f := range []event.Field{event.FieldStart, event.FieldEnd} {
		v := res.Start
		if f == event.FieldEnd {
			v = res.End
		}
		ev.SetField(f, &event.FieldResult{
			Value:          v.Format(time.RFC3339),
			Source:         event.SourceBackup,
			Confidence:     res.Confidence,
			Start:          -1,
			End:            -1,
			ProcessingTime: time.Since(started),
		})
	}
	if len(res.Matched) > 0 {
		ev.Metadata["backup_matched"] = res.Matched
	}
	ev.ParsingPath = event.PathBackup
	rc.Debug("deterministic backup applied", slog.Float64("confidence", res.Confidence))
}

// runLLM asks the provider for the whole event and keeps each field only
// where the provider is more confident than the deterministic stages.
func (p *HybridParser) runLLM(ctx context.Context, rc *observability.RequestContext, text string, ev *event.ParsedEvent) {
	lctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	started := time.Now()
	x, err := p.provider.ExtractEvent(lctx, text, hintOf(ev))
	if err != nil {
		code := exerrors.GetCodeFromError(err, exerrors.ErrCodeCollaboratorUnavailable)
		outcome := observability.LLMError
		switch code {
		case exerrors.ErrCodeExtractionTimeout:
			outcome = observability.LLMTimeout
		case exerrors.ErrCodeCollaboratorUnavailable:
			outcome = observability.LLMUnavailable
		}
		p.metrics.RecordLLMCall(outcome)
		ev.AddError(string(code))
		rc.Warn("llm fallback failed",
			slog.String("provider", p.provider.Name()),
			slog.String(observability.LogFieldErrorCode, string(code)),
			slog.String("error", err.Error()),
		)
		return
	}
	elapsed := time.Since(started)

	accepted := p.acceptLLMFields(ev, x, elapsed)
	if len(accepted) == 0 {
		p.metrics.RecordLLMCall(observability.LLMRejected)
		rc.Debug("llm answer not better than deterministic fields")
		return
	}
	p.metrics.RecordLLMCall(observability.LLMAccepted)
	ev.ParsingPath = event.PathLLM
	ev.Metadata["llm_fields"] = accepted
	ev.Metadata["llm_provider"] = p.provider.Name()
	if ev.Description == text && x.Fields.Description != "" {
		ev.Description = x.Fields.Description
	}
	rc.Debug("llm fields accepted",
		slog.String("provider", p.provider.Name()),
		slog.Any("fields", accepted),
	)
}

func (p *HybridParser) acceptLLMFields(ev *event.ParsedEvent, x *ai.Extraction, elapsed time.Duration) []string {
	var accepted []string
	llmField := func(f event.Field, value string, conf float64) {
		ev.SetField(f, &event.FieldResult{
			Value:          value,
			Source:         event.SourceLLM,
			Confidence:     extract.Clamp(conf, 0, 1),
			Start:          -1,
			End:            -1,
			ProcessingTime: elapsed,
		})
		accepted = append(accepted, string(f))
	}

	if score := x.FieldScore(string(event.FieldTitle)); x.Fields.Title != "" && score > ev.FieldConfidence(event.FieldTitle) {
		ev.Title = x.Fields.Title
		llmField(event.FieldTitle, x.Fields.Title, score)
	}

	if score := x.FieldScore(string(event.FieldStart)); x.Fields.Start != nil && score > ev.FieldConfidence(event.FieldStart) {
		start := x.Fields.Start.In(p.cfg.Location)
		end := start.Add(p.cfg.Defaults.Duration)
		if x.Fields.End != nil && x.Fields.End.After(start) {
			end = x.Fields.End.In(p.cfg.Location)
		}
		ev.Start, ev.End, ev.AllDay = &start, &end, x.Fields.AllDay
		llmField(event.FieldStart, start.Format(time.RFC3339), score)
		llmField(event.FieldEnd, end.Format(time.RFC3339), score)
	}

	if score := x.FieldScore(string(event.FieldLocation)); x.Fields.Location != "" && score > ev.FieldConfidence(event.FieldLocation) {
		ev.Location = x.Fields.Location
		llmField(event.FieldLocation, x.Fields.Location, score)
	}
	return accepted
}

// hintOf summarizes what the deterministic stages found for the LLM prompt.
func hintOf(ev *event.ParsedEvent) string {
	var parts []string
	if ev.HasTitle() {
		parts = append(parts, fmt.Sprintf("title=%q (%.2f)", ev.Title, ev.FieldConfidence(event.FieldTitle)))
	}
	if ev.HasStart() {
		parts = append(parts, fmt.Sprintf("start=%s (%.2f)", ev.Start.Format(time.RFC3339), ev.FieldConfidence(event.FieldStart)))
	}
	if ev.HasLocation() {
		parts = append(parts, fmt.Sprintf("location=%q (%.2f)", ev.Location, ev.FieldConfidence(event.FieldLocation)))
	}
	if len(parts) == 0 {
		return "nothing"
	}
	return strings.Join(parts, "; ")
}

// spanOf locates value in text case-insensitively, or returns (-1, -1).
func spanOf(text, value string) (int, int) {
	i := strings.Index(strings.ToLower(text), strings.ToLower(value))
	if i < 0 {
		return -1, -1
	}
	return i, i + len(value)
}
