// Package event defines the parsed-event aggregate with per-field provenance
// and the generic title+location orchestration with overall-confidence scoring.
package event

import (
	"maps"
	"slices"
	"time"
)

// Field names a ParsedEvent field.
type Field string

const (
	FieldTitle    Field = "title"
	FieldStart    Field = "start_datetime"
	FieldEnd      Field = "end_datetime"
	FieldLocation Field = "location"
)

// Source records which stage produced a field value.
type Source string

const (
	SourceRegex   Source = "regex"
	SourceBackup  Source = "deterministic_backup"
	SourceLLM     Source = "llm"
	SourceDefault Source = "default"
)

// Path records which strategy produced the final result.
type Path string

const (
	PathRegexPrimary Path = "regex_primary"
	PathBackup       Path = "deterministic_backup"
	PathLLM          Path = "llm_fallback"
	PathTimeout      Path = "timeout_fallback"
)

// SafeThreshold is the confidence below which an event needs confirmation.
const SafeThreshold = 0.6

// FieldResult is the provenance record of one field.
type FieldResult struct {
	Value          string        `json:"value"`
	Source         Source        `json:"source"`
	Confidence     float64       `json:"confidence"`
	Start          int           `json:"start_pos"`
	End            int           `json:"end_pos"`
	Alternatives   []string      `json:"alternatives,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ParsedEvent is the final aggregate of a parse request. An empty Title or
// Location means the field is missing.
type ParsedEvent struct {
	Title             string                 `json:"title"`
	Start             *time.Time             `json:"start_datetime"`
	End               *time.Time             `json:"end_datetime"`
	Location          string                 `json:"location"`
	Description       string                 `json:"description"`
	Confidence        float64                `json:"confidence_score"`
	AllDay            bool                   `json:"all_day"`
	ParsingPath       Path                   `json:"parsing_path"`
	FieldResults      map[Field]*FieldResult `json:"field_results"`
	NeedsConfirmation bool                   `json:"needs_confirmation"`
	CacheHit          bool                   `json:"cache_hit"`
	Metadata          map[string]any         `json:"extraction_metadata"`
}

// New returns an empty event with initialized maps.
func New() *ParsedEvent {
	return &ParsedEvent{
		FieldResults: make(map[Field]*FieldResult),
		Metadata:     make(map[string]any),
	}
}

func (e *ParsedEvent) HasTitle() bool    { return e.Title != "" }
func (e *ParsedEvent) HasStart() bool    { return e.Start != nil }
func (e *ParsedEvent) HasLocation() bool { return e.Location != "" }

// FieldConfidence returns the recorded confidence of a field, 0 when absent.
func (e *ParsedEvent) FieldConfidence(f Field) float64 {
	if fr, ok := e.FieldResults[f]; ok && fr != nil {
		return fr.Confidence
	}
	return 0
}

// SetField stores a provenance record, creating the map when needed.
func (e *ParsedEvent) SetField(f Field, fr *FieldResult) {
	if e.FieldResults == nil {
		e.FieldResults = make(map[Field]*FieldResult)
	}
	e.FieldResults[f] = fr
}

// AddError appends an error code to the metadata "errors" list.
func (e *ParsedEvent) AddError(code string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	codes := e.Errors()
	if slices.Contains(codes, code) {
		return
	}
	e.Metadata["errors"] = append(codes, code)
}

// Errors returns the error codes recorded in the metadata. Lists decoded
// from JSON arrive as []any and are converted.
func (e *ParsedEvent) Errors() []string {
	switch v := e.Metadata["errors"].(type) {
	case []string:
		return v
	case []any:
		codes := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				codes = append(codes, s)
			}
		}
		return codes
	}
	return nil
}

// RefreshConfirmation recomputes NeedsConfirmation from the confidence and
// the presence of a start.
func (e *ParsedEvent) RefreshConfirmation() {
	e.NeedsConfirmation = e.NeedsConfirmation || e.Confidence < SafeThreshold || !e.HasStart()
}

// Clone returns a deep copy so cached events are never shared.
func (e *ParsedEvent) Clone() *ParsedEvent {
	if e == nil {
		return nil
	}
	c := *e
	if e.Start != nil {
		s := *e.Start
		c.Start = &s
	}
	if e.End != nil {
		t := *e.End
		c.End = &t
	}
	c.FieldResults = make(map[Field]*FieldResult, len(e.FieldResults))
	for k, v := range e.FieldResults {
		if v == nil {
			continue
		}
		fr := *v
		fr.Alternatives = slices.Clone(v.Alternatives)
		c.FieldResults[k] = &fr
	}
	c.Metadata = maps.Clone(e.Metadata)
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	if errs := e.Errors(); errs != nil {
		c.Metadata["errors"] = slices.Clone(errs)
	}
	return &c
}
