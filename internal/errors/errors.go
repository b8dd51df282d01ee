package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeQueryFailure,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Predefined error codes
const (
	CodeCyclicGraph               = "CYCLIC_GRAPH"
	CodeMissingColumn             = "MISSING_COLUMN"
	CodeInsufficientData          = "INSUFFICIENT_DATA"
	CodeMechanismNotInvertible    = "MECHANISM_NOT_INVERTIBLE"
	CodeUnknownInterventionTarget = "UNKNOWN_INTERVENTION_TARGET"
	CodeInconsistentKeySet        = "INCONSISTENT_KEY_SET"
	CodeQueryFailure              = "QUERY_FAILURE"
	CodeConfigInvalid             = "CONFIG_INVALID"
	CodeDatabaseError             = "DATABASE_ERROR"
	CodeInvalidInput              = "INVALID_INPUT"
	CodeNotFound                  = "NOT_FOUND"
)

// Common error constructors
func CyclicGraph(message string) *AppError {
	return New(CodeCyclicGraph, message)
}

func MissingColumn(column string) *AppError {
	return New(CodeMissingColumn, fmt.Sprintf("graph variable %q has no matching column in the observation table", column))
}

func InsufficientData(message string) *AppError {
	return New(CodeInsufficientData, message)
}

func MechanismNotInvertible(message string) *AppError {
	return New(CodeMechanismNotInvertible, message)
}

func UnknownInterventionTarget(target string) *AppError {
	return New(CodeUnknownInterventionTarget, fmt.Sprintf("intervention target %q is not a node of the causal graph", target))
}

func InconsistentKeySet(message string) *AppError {
	return New(CodeInconsistentKeySet, message)
}

func QueryFailure(message string) *AppError {
	return New(CodeQueryFailure, message)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}
