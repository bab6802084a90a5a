// Package errors provides the error taxonomy shared by the repair engine.
//
// Every condition the engine can meet is recoverable. The sentinels below let
// callers classify the notes attached to a repair result with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the recoverable conditions of a repair run
var (
	// ErrConfigDegraded indicates configuration was unreadable or malformed and defaults were used
	ErrConfigDegraded = errors.New("config degraded")
	// ErrStructuralParseFailed indicates the strict parser rejected the document
	ErrStructuralParseFailed = errors.New("structural parse failed")
	// ErrRecoveryInconclusive indicates the recovering parser could not build any element
	ErrRecoveryInconclusive = errors.New("recovery inconclusive")
	// ErrAnchorNotFound indicates neither container nor anchor was found for a new tag
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrNoSafeEdit indicates no strategy could edit the document; it is returned unchanged
	ErrNoSafeEdit = errors.New("no safe edit")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
)

// ParseError represents a failure to parse a document or configuration source
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "YAML", "JSON")
	Line    int    // 1-based line, 0 when unknown
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s at line %d: %s", e.Format, e.Line, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// DegradedError records a configuration source that fell back to defaults.
type DegradedError struct {
	Source string // Path or name of the configuration source
	Reason string // What was wrong with it
	Err    error  // Underlying error, if any
}

func (e *DegradedError) Error() string {
	msg := fmt.Sprintf("config %s degraded to defaults: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause.
func (e *DegradedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfigDegraded, e.Err}
	}
	return []error{ErrConfigDegraded}
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for creating common errors

// NewParse creates a ParseError wrapping cause.
func NewParse(format string, line int, message string, cause error) *ParseError {
	return &ParseError{
		Format:  format,
		Line:    line,
		Message: message,
		Err:     cause,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewDegraded creates a DegradedError
func NewDegraded(source, reason string, err error) *DegradedError {
	return &DegradedError{
		Source: source,
		Reason: reason,
		Err:    err,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
