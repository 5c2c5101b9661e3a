package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrFlowNotFound is returned when a flow cannot be found
	ErrFlowNotFound = errors.New("flow not found")

	// ErrBlockNotFound is returned when a block id does not resolve within a flow
	ErrBlockNotFound = errors.New("block not found")

	// ErrRunNotFound is returned when a run cannot be found
	ErrRunNotFound = errors.New("run not found")

	// ErrRuleNotFound is returned when a rule or plan id does not resolve
	ErrRuleNotFound = errors.New("rule not found")

	// ErrQuestionNotFound is returned when an answer references an unknown question
	ErrQuestionNotFound = errors.New("question not found")

	// ErrDuplicateBlockID is returned when an insert would break block id uniqueness
	ErrDuplicateBlockID = errors.New("duplicate block id")

	// ErrCheckoutDuplicate is returned when a checkout block is duplicated
	ErrCheckoutDuplicate = errors.New("checkout blocks cannot be duplicated")

	// ErrRunTerminal is returned when a transition is attempted on a finished run
	ErrRunTerminal = errors.New("run is terminal")

	// ErrInvalidFlow is returned when flow configuration is invalid
	ErrInvalidFlow = errors.New("invalid flow configuration")
)

// ValidationError represents a validation error with field information
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// FlowError represents errors specific to flow operations
type FlowError struct {
	FlowID  string
	BlockID string
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.BlockID != "" {
		return fmt.Sprintf("flow error in flow %s at block %s: %s", e.FlowID, e.BlockID, e.Message)
	}
	if e.FlowID != "" {
		return fmt.Sprintf("flow error in flow %s: %s", e.FlowID, e.Message)
	}
	return fmt.Sprintf("flow error: %s", e.Message)
}

// Unwrap allows errors.Is and errors.As to work with wrapped errors
func (e *FlowError) Unwrap() error {
	return e.Err
}

// NewFlowError creates a new flow error
func NewFlowError(flowID, blockID, message string) error {
	return &FlowError{
		FlowID:  flowID,
		BlockID: blockID,
		Message: message,
	}
}

// WrapFlowError wraps an existing error with flow context
func WrapFlowError(err error, flowID, blockID string) error {
	return &FlowError{
		FlowID:  flowID,
		BlockID: blockID,
		Message: err.Error(),
		Err:     err,
	}
}

// RunError represents errors specific to a run of a flow
type RunError struct {
	RunID   string
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("run error for run %s: %s", e.RunID, e.Message)
	}
	return fmt.Sprintf("run error: %s", e.Message)
}

// Unwrap allows errors.Is and errors.As to work with wrapped errors
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new run error
func NewRunError(runID, message string) error {
	return &RunError{
		RunID:   runID,
		Message: message,
	}
}

// WrapRunError wraps an existing error with run context
func WrapRunError(err error, runID string) error {
	return &RunError{
		RunID:   runID,
		Message: err.Error(),
		Err:     err,
	}
}

// Helper functions to check error types

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsFlowError checks if the error is a flow error
func IsFlowError(err error) bool {
	var flowErr *FlowError
	return errors.As(err, &flowErr)
}

// IsRunError checks if the error is a run error
func IsRunError(err error) bool {
	var runErr *RunError
	return errors.As(err, &runErr)
}

// IsFlowNotFound checks if the error wraps ErrFlowNotFound
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsBlockNotFound checks if the error wraps ErrBlockNotFound
func IsBlockNotFound(err error) bool {
	return errors.Is(err, ErrBlockNotFound)
}

// IsRunNotFound checks if the error wraps ErrRunNotFound
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRuleNotFound checks if the error wraps ErrRuleNotFound
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsDuplicateBlockID checks if the error wraps ErrDuplicateBlockID
func IsDuplicateBlockID(err error) bool {
	return errors.Is(err, ErrDuplicateBlockID)
}

// NewInternalError creates a new internal server error
func NewInternalError(message string) error {
	return fmt.Errorf("internal server error: %s", message)
}
