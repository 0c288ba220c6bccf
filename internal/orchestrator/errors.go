package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrInvalidInput ErrorType = iota
	ErrNotFound
	ErrCorrupt
	ErrCycleDetected
	ErrUnknownDependency
	ErrExecutorFailure
	ErrInvalidDefinition
	ErrUnknown
)

// OrchError is the error type shared by the batch runner, the workflow
// executor and the checkpoint store. Structural errors (invalid input,
// cycles, unknown dependencies, invalid definitions) are raised before any
// work item runs; executor failures are raised per item and may be absorbed
// by the configured error policy.
type OrchError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *OrchError {
	return &OrchError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *OrchError {
	return &OrchError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *OrchError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *OrchError) Unwrap() error {
	return e.Cause
}

func (e *OrchError) WithContext(key string, value any) *OrchError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrNotFound:
		return "NotFound"
	case ErrCorrupt:
		return "Corrupt"
	case ErrCycleDetected:
		return "CycleDetected"
	case ErrUnknownDependency:
		return "UnknownDependency"
	case ErrExecutorFailure:
		return "ExecutorFailure"
	case ErrInvalidDefinition:
		return "InvalidDefinition"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var oerr *OrchError
	if errors.As(err, &oerr) {
		return oerr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *OrchError {
	return NewErrorWithCause(errorType, message, err)
}
