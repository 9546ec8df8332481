// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrVariableNotFound indicates no variable exists for the given key.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrRecordNotFound indicates a record was not found by its identifier.
	ErrRecordNotFound = errors.New("record not found")

	// ErrWorkflowNotFound indicates no state exists for the given workflow.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// VariableError wraps variable-related errors with additional context.
type VariableError struct {
	Op         string // Operation being performed (e.g., "Get", "Upsert", "Delete")
	WorkflowID string
	Key        string
	Err        error
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("%s operation failed for variable %s in workflow %s: %v", e.Op, e.Key, e.WorkflowID, e.Err)
}

func (e *VariableError) Unwrap() error {
	return e.Err
}

func (e *VariableError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewVariableError creates a new variable error with context.
func NewVariableError(op, workflowID, key string, err error) *VariableError {
	return &VariableError{
		Op:         op,
		WorkflowID: workflowID,
		Key:        key,
		Err:        err,
	}
}

// RecordError wraps record-related errors with additional context.
type RecordError struct {
	Op         string
	WorkflowID string
	RecordID   string
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for record %s in workflow %s: %v", e.Op, e.RecordID, e.WorkflowID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, workflowID, recordID string, err error) *RecordError {
	return &RecordError{
		Op:         op,
		WorkflowID: workflowID,
		RecordID:   recordID,
		Err:        err,
	}
}

// IsVariableNotFound checks if an error indicates a variable was not found.
func IsVariableNotFound(err error) bool {
	return errors.Is(err, ErrVariableNotFound)
}

// IsRecordNotFound checks if an error indicates a record was not found.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
