package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode identifies the class of an application error.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// Idempotent no-ops. Callers render these as "already done", not as failures.
	ErrCodeAlreadyClosed ErrorCode = "ALREADY_CLOSED"
	ErrCodeAlreadyJoined ErrorCode = "ALREADY_JOINED"

	// The in-memory change was applied but could not be written durably.
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"
	// Winner selection failed; the event stays open and is retried.
	ErrCodeSelection ErrorCode = "SELECTION_ERROR"
)

// AppError is a typed application error.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error is a "not found" error.
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound
}

// IsValidation reports whether the error is a validation error.
func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation
}

// IsAlreadyDone reports whether the error marks an idempotent no-op.
func (e *AppError) IsAlreadyDone() bool {
	return e.Code == ErrCodeAlreadyClosed || e.Code == ErrCodeAlreadyJoined
}

// WithDetail attaches a detail value to the error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Wrap wraps an existing error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("conflict with %s: %s", resource, reason)).
		WithDetail("resource", resource).
		WithDetail("reason", reason)
}

func NewInvalidStateError(eventID, status, operation string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("cannot %s event %s in status %s", operation, eventID, status)).
		WithDetail("event_id", eventID).
		WithDetail("status", status).
		WithDetail("operation", operation)
}

func NewAlreadyClosedError(eventID string) *AppError {
	return New(ErrCodeAlreadyClosed, fmt.Sprintf("event %s is already closed", eventID)).
		WithDetail("event_id", eventID)
}

func NewAlreadyJoinedError(eventID, participantID string) *AppError {
	return New(ErrCodeAlreadyJoined, fmt.Sprintf("participant %s already joined event %s", participantID, eventID)).
		WithDetail("event_id", eventID).
		WithDetail("participant_id", participantID)
}

func NewPersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistence, fmt.Sprintf("persistence failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewSelectionError(eventID string, err error) *AppError {
	return Wrap(err, ErrCodeSelection, fmt.Sprintf("winner selection failed for event %s", eventID)).
		WithDetail("event_id", eventID)
}

// AsAppError finds the first AppError in the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in the chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
