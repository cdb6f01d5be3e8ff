// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoInstrumentSelected = errors.New("no instrument selected")
	ErrSymbolNotFound       = errors.New("symbol not found")
	ErrBackendUnreachable   = errors.New("backend unreachable")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrInputValidation      = errors.New("input validation failed")
)

// TransportError reports a call where no usable HTTP exchange happened:
// network failure, timeout, or a non-2xx reply. Payload holds the decoded
// JSON body when the backend sent one anyway.
type TransportError struct {
	Op         string
	StatusCode int
	Payload    map[string]any
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error [%s]: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HasPayload reports whether the failed exchange still carried a JSON body.
func (e *TransportError) HasPayload() bool {
	return len(e.Payload) > 0
}

// NewTransportError creates a new TransportError.
func NewTransportError(op string, statusCode int, payload map[string]any, err error) *TransportError {
	return &TransportError{
		Op:         op,
		StatusCode: statusCode,
		Payload:    payload,
		Err:        err,
	}
}

// BackendError represents a response whose status field is not usable.
type BackendError struct {
	Op        string
	Status    string
	Message   string
	RequestID string
}

func (e *BackendError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("backend error [%s] %s: %s (rid %s)", e.Op, e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("backend error [%s] %s: %s", e.Op, e.Status, e.Message)
}

// NewBackendError creates a new BackendError.
func NewBackendError(op, status, message, requestID string) *BackendError {
	return &BackendError{
		Op:        op,
		Status:    status,
		Message:   message,
		RequestID: requestID,
	}
}

// ResolutionError reports an instrument that could not be mapped to a
// security id.
type ResolutionError struct {
	Symbol      string
	Segment     string
	Message     string
	Suggestions []string
	Err         error
}

func (e *ResolutionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no matching instrument"
	}
	if e.Err != nil {
		return fmt.Sprintf("resolution error [%s %s]: %s: %v", e.Symbol, e.Segment, msg, e.Err)
	}
	return fmt.Sprintf("resolution error [%s %s]: %s", e.Symbol, e.Segment, msg)
}

func (e *ResolutionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSymbolNotFound
}

// NewResolutionError creates a new ResolutionError.
func NewResolutionError(symbol, segment, message string, suggestions []string, err error) *ResolutionError {
	return &ResolutionError{
		Symbol:      symbol,
		Segment:     segment,
		Message:     message,
		Suggestions: suggestions,
		Err:         err,
	}
}

// ValidationError represents a local precondition that failed before any
// network call.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
