// Package detecterrors provides the typed error taxonomy shared by the detection engine.
// Each kind has a sentinel value usable with errors.Is and a struct type carrying details.
package detecterrors

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownModel is the sentinel for a model key outside the supported set.
// Caller error; not retried.
var ErrUnknownModel = &UnknownModelError{}

// UnknownModelError reports a model key that is not in the supported set.
type UnknownModelError struct {
	Key string
}

// NewUnknownModelError creates an UnknownModelError for key.
func NewUnknownModelError(key string) *UnknownModelError {
	return &UnknownModelError{Key: key}
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	if e.Key != "" {
		return "unknown model: " + strconv.Quote(e.Key)
	}

	return "unknown model"
}

// Is implements the error interface for error comparison.
func (e *UnknownModelError) Is(target error) bool {
	_, ok := target.(*UnknownModelError)

	return ok
}

// ErrModelLoad is the sentinel for a backend that could not be materialized.
// May be transient; the caller may retry.
var ErrModelLoad = &ModelLoadError{}

// ModelLoadError reports a failed (or timed out) backend load.
type ModelLoadError struct {
	Key   string
	Cause error
}

// NewModelLoadError creates a ModelLoadError for key wrapping cause.
func NewModelLoadError(key string, cause error) *ModelLoadError {
	return &ModelLoadError{Key: key, Cause: cause}
}

// Error implements the error interface.
func (e *ModelLoadError) Error() string {
	msg := "failed to load model"
	if e.Key != "" {
		msg += " " + strconv.Quote(e.Key)
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ModelLoadError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *ModelLoadError) Is(target error) bool {
	_, ok := target.(*ModelLoadError)

	return ok
}

// ErrEmptyInput is the sentinel for an empty text or vector sequence.
var ErrEmptyInput = &EmptyInputError{}

// EmptyInputError reports an empty input sequence.
type EmptyInputError struct {
	Message string
}

// NewEmptyInputError creates an EmptyInputError with a custom message.
func NewEmptyInputError(message string) *EmptyInputError {
	return &EmptyInputError{Message: message}
}

// Error implements the error interface.
func (e *EmptyInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "empty input"
}

// Is implements the error interface for error comparison.
func (e *EmptyInputError) Is(target error) bool {
	_, ok := target.(*EmptyInputError)

	return ok
}

// ErrInsufficientInput is the sentinel for fewer than the minimum number of non-empty texts.
var ErrInsufficientInput = &InsufficientInputError{}

// InsufficientInputError reports that too few usable texts were supplied.
type InsufficientInputError struct {
	Message string
}

// NewInsufficientInputError creates an InsufficientInputError with a custom message.
func NewInsufficientInputError(message string) *InsufficientInputError {
	return &InsufficientInputError{Message: message}
}

// Error implements the error interface.
func (e *InsufficientInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "at least 2 non-empty texts are required"
}

// Is implements the error interface for error comparison.
func (e *InsufficientInputError) Is(target error) bool {
	_, ok := target.(*InsufficientInputError)

	return ok
}

// ErrTooManyTexts is the sentinel for requests above the configured maximum text count.
var ErrTooManyTexts = &TooManyTextsError{}

// TooManyTextsError reports a request with more texts than allowed.
type TooManyTextsError struct {
	Got int
	Max int
}

// NewTooManyTextsError creates a TooManyTextsError.
func NewTooManyTextsError(got, maxTexts int) *TooManyTextsError {
	return &TooManyTextsError{Got: got, Max: maxTexts}
}

// Error implements the error interface.
func (e *TooManyTextsError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("too many texts: got %d, maximum is %d", e.Got, e.Max)
	}

	return "too many texts"
}

// Is implements the error interface for error comparison.
func (e *TooManyTextsError) Is(target error) bool {
	_, ok := target.(*TooManyTextsError)

	return ok
}

// ErrDimensionMismatch is the sentinel for vectors or texts whose sizes disagree between stages.
// Indicates a wiring defect rather than a user error.
var ErrDimensionMismatch = &DimensionMismatchError{}

// DimensionMismatchError reports disagreeing lengths between stages.
type DimensionMismatchError struct {
	Message string
}

// NewDimensionMismatchError creates a DimensionMismatchError with a formatted message.
func NewDimensionMismatchError(format string, args ...any) *DimensionMismatchError {
	return &DimensionMismatchError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	if e.Message != "" {
		return "dimension mismatch: " + e.Message
	}

	return "dimension mismatch"
}

// Is implements the error interface for error comparison.
func (e *DimensionMismatchError) Is(target error) bool {
	_, ok := target.(*DimensionMismatchError)

	return ok
}

// ErrInvalidThreshold is the sentinel for a threshold outside [0, 1].
var ErrInvalidThreshold = &InvalidThresholdError{}

// InvalidThresholdError reports an out-of-range threshold.
type InvalidThresholdError struct {
	Value float64
	set   bool
}

// NewInvalidThresholdError creates an InvalidThresholdError for value.
func NewInvalidThresholdError(value float64) *InvalidThresholdError {
	return &InvalidThresholdError{Value: value, set: true}
}

// Error implements the error interface.
func (e *InvalidThresholdError) Error() string {
	if e.set {
		return fmt.Sprintf("threshold must be between 0.0 and 1.0, got %g", e.Value)
	}

	return "threshold must be between 0.0 and 1.0"
}

// Is implements the error interface for error comparison.
func (e *InvalidThresholdError) Is(target error) bool {
	_, ok := target.(*InvalidThresholdError)

	return ok
}

// ErrEmbedding is the sentinel for a loaded backend that failed during inference.
var ErrEmbedding = &EmbeddingError{}

// EmbeddingError reports an inference failure from a ready backend.
type EmbeddingError struct {
	Key   string
	Cause error
}

// NewEmbeddingError creates an EmbeddingError for model key wrapping cause.
func NewEmbeddingError(key string, cause error) *EmbeddingError {
	return &EmbeddingError{Key: key, Cause: cause}
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	msg := "failed to generate embeddings"
	if e.Key != "" {
		msg += " with " + strconv.Quote(e.Key)
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// Is implements the error interface for error comparison.
func (e *EmbeddingError) Is(target error) bool {
	_, ok := target.(*EmbeddingError)

	return ok
}

// IsCallerError reports whether err is caused by invalid caller input
// (as opposed to a transient backend failure or an internal defect).
func IsCallerError(err error) bool {
	return errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInsufficientInput) ||
		errors.Is(err, ErrTooManyTexts) ||
		errors.Is(err, ErrInvalidThreshold)
}
