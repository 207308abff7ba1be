// Package errors defines the error taxonomy of the extraction pipeline.
//
// Only configuration and startup failures (pattern compilation, invalid
// config, accept-policy compilation) are returned to callers as errors.
// Everything on the per-request path is absorbed into low-confidence results
// and surfaced as a code string in the event metadata.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific failure kind.
type ErrorCode string

const (
	// ErrCodeInputInvalid indicates empty or oversized input text.
	ErrCodeInputInvalid ErrorCode = "INPUT_INVALID"
	// ErrCodePatternCompileFailure indicates a configured regex failed to compile.
	ErrCodePatternCompileFailure ErrorCode = "PATTERN_COMPILE_FAILURE"
	// ErrCodeExtractionTimeout indicates a field extractor or the LLM exceeded its budget.
	ErrCodeExtractionTimeout ErrorCode = "EXTRACTION_TIMEOUT"
	// ErrCodeCollaboratorUnavailable indicates the cache or LLM backend could not be used.
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
	// ErrCodeAmbiguousMerge indicates the merge helper declined to merge fragments.
	ErrCodeAmbiguousMerge ErrorCode = "AMBIGUOUS_MERGE"
	// ErrCodeConfigInvalid indicates invalid configuration.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// ExtractError represents a structured pipeline error.
type ExtractError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *ExtractError) WithContext(key string, value any) *ExtractError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *ExtractError) GetCode() ErrorCode {
	return e.Code
}

// InputInvalid creates an input-invalid error.
func InputInvalid(msg string) *ExtractError {
	return &ExtractError{Code: ErrCodeInputInvalid, Message: msg}
}

// PatternCompileFailure creates a pattern compilation error for the named pattern.
func PatternCompileFailure(name string, cause error) *ExtractError {
	return &ExtractError{
		Code:    ErrCodePatternCompileFailure,
		Message: fmt.Sprintf("pattern %q failed to compile", name),
		Cause:   cause,
	}
}

// ExtractionTimeout creates a timeout error for the named stage.
func ExtractionTimeout(stage string, cause error) *ExtractError {
	return &ExtractError{
		Code:    ErrCodeExtractionTimeout,
		Message: fmt.Sprintf("%s exceeded its time budget", stage),
		Cause:   cause,
	}
}

// CollaboratorUnavailable creates an error for an unreachable cache or LLM backend.
func CollaboratorUnavailable(name string, cause error) *ExtractError {
	return &ExtractError{
		Code:    ErrCodeCollaboratorUnavailable,
		Message: fmt.Sprintf("%s unavailable", name),
		Cause:   cause,
	}
}

// AmbiguousMerge creates the deliberate no-op outcome of a declined merge.
func AmbiguousMerge(reason string) *ExtractError {
	return &ExtractError{Code: ErrCodeAmbiguousMerge, Message: reason}
}

// ConfigInvalid creates a configuration error.
func ConfigInvalid(msg string, cause error) *ExtractError {
	return &ExtractError{Code: ErrCodeConfigInvalid, Message: msg, Cause: cause}
}

// IsCode checks if an error (or anything it wraps) carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var e *ExtractError
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an ExtractError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var e *ExtractError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return defaultCode
}
