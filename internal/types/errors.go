package types

import (
	"errors"
	"fmt"
	"strings"
)

// RetryableError represents an error that indicates the operation can be retried.
// This is typically used for transient errors like network timeouts, rate limits, or temporary server unavailability.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an existing error as a RetryableError.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// ParseError indicates that an LLM response could not be coerced into its
// target schema, even after the bounded repair loop.
type ParseError struct {
	Schema   string // target schema name, e.g. "ReviewPlan"
	Attempts int    // parse attempts performed, repairs included
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s failed after %d attempts: %v", e.Schema, e.Attempts, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a malformed or incomplete request. It is never
// retried and is surfaced to the caller as-is.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Fields, "; ")
}

// NewValidationError creates a ValidationError from field-level messages.
func NewValidationError(fields ...string) error {
	return &ValidationError{Fields: fields}
}

// BudgetExceededError indicates an indexing run was rejected because the
// repository exceeds the configured file or chunk caps.
type BudgetExceededError struct {
	Kind  string // "files" or "chunks"
	Count int
	Limit int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("indexing budget exceeded: %d %s (limit %d)", e.Count, e.Kind, e.Limit)
}
