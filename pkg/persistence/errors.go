// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowConflict indicates another active workflow already covers the same scope.
	ErrWorkflowConflict = errors.New("an active workflow already covers this project and issue type")

	// ErrStepNotFound indicates a step was not found by the given identifier.
	ErrStepNotFound = errors.New("step not found")

	// ErrStepConflict indicates the status label is already used by another step of the workflow.
	ErrStepConflict = errors.New("step status already used in workflow")

	// ErrIssueNotFound indicates an issue was not found by the given identifier.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrStatusConflict indicates the issue status changed since it was last read.
	ErrStatusConflict = errors.New("issue status changed concurrently")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
	Message    string // Additional context message
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IssueError wraps issue-related errors with additional context.
type IssueError struct {
	Op      string // Operation being performed
	IssueID string // Issue ID
	Err     error  // Underlying error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("%s operation failed for issue %s: %v", e.Op, e.IssueID, e.Err)
}

func (e *IssueError) Unwrap() error {
	return e.Err
}

func (e *IssueError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewIssueError creates a new issue error with context.
func NewIssueError(op, issueID string, err error) *IssueError {
	return &IssueError{
		Op:      op,
		IssueID: issueID,
		Err:     err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowConflict checks if an error indicates a uniqueness conflict between active workflows.
func IsWorkflowConflict(err error) bool {
	return errors.Is(err, ErrWorkflowConflict)
}

// IsStepNotFound checks if an error indicates a step was not found.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsStepConflict checks if an error indicates a duplicated step status.
func IsStepConflict(err error) bool {
	return errors.Is(err, ErrStepConflict)
}

// IsIssueNotFound checks if an error indicates an issue was not found.
func IsIssueNotFound(err error) bool {
	return errors.Is(err, ErrIssueNotFound)
}

// IsStatusConflict checks if an error indicates a lost compare-and-swap on an issue status.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
