package domain

import (
	"errors"
	"fmt"
)

// Error kind names reported to the execution coordinator in failure
// callbacks. Kept stable; downstream state machines match on them.
const (
	KindInfrastructure = "InfrastructureError"
	KindValidation     = "ValidationError"
	KindProcessing     = "ProcessingError"
	KindConfiguration  = "ConfigurationError"
)

// InfrastructureError wraps network and storage I/O failures.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed or unsupported input.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProcessingError wraps failures inside the media/inference stages.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewInfrastructureError wraps a storage or network failure.
func NewInfrastructureError(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}

// NewValidationError reports unusable input.
func NewValidationError(reason string, err error) error {
	return &ValidationError{Reason: reason, Err: err}
}

// NewProcessingError wraps a pipeline-stage failure.
func NewProcessingError(stage string, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}

// ErrorKind maps an error to the kind name used in failure callbacks.
// Unclassified errors are reported as processing failures.
func ErrorKind(err error) string {
	var infraErr *InfrastructureError
	var validationErr *ValidationError

	if errors.As(err, &infraErr) {
		return KindInfrastructure
	}
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	return KindProcessing
}
