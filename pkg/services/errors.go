// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowInUse = errors.New("workflow is in use by issues of the project")

	// Transition rejections, one per failure kind.
	ErrNoWorkflow           = errors.New("no workflow found for this issue")
	ErrUnknownState         = errors.New("status not found in workflow")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrPermissionDenied     = errors.New("user does not have required role for this transition")
	ErrConditionFailed      = errors.New("transition condition not satisfied")
	ErrValidatorRejected    = errors.New("transition rejected by validator")
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	// ErrIssueNotFound is returned when an issue is not found.
	ErrIssueNotFound = persistence.ErrIssueNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Violation is one rule a definition entity breaks.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DefinitionValidationError lists every violation found in a create or update request.
type DefinitionValidationError struct {
	Op         string
	Violations []Violation
}

func (e *DefinitionValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}

	return fmt.Sprintf("%s: %s", e.Op, strings.Join(parts, "; "))
}

func (e *DefinitionValidationError) Unwrap() error {
	return ErrInvalidDefinition
}

// TransitionError carries a rejected validation result through error returns.
type TransitionError struct {
	Result *models.WorkflowValidationResult
}

func (e *TransitionError) Error() string {
	return strings.Join(e.Result.Errors, "; ")
}

func (e *TransitionError) Unwrap() error {
	return failureSentinel(e.Result.Failure)
}

func failureSentinel(kind models.FailureKind) error {
	switch kind {
	case models.FailureConfiguration:
		return ErrNoWorkflow
	case models.FailureUnknownState:
		return ErrUnknownState
	case models.FailureTransitionNotAllowed:
		return ErrTransitionNotAllowed
	case models.FailurePermission:
		return ErrPermissionDenied
	case models.FailureConditionFailed:
		return ErrConditionFailed
	case models.FailureValidatorRejected:
		return ErrValidatorRejected
	default:
		return nil
	}
}

// ResultError converts a rejected result into a *TransitionError. It returns
// nil for an accepting result.
func ResultError(result *models.WorkflowValidationResult) error {
	if result == nil || result.IsValid {
		return nil
	}

	return &TransitionError{Result: result}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidDefinition)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInUse) ||
		errors.Is(err, persistence.ErrWorkflowConflict) ||
		errors.Is(err, persistence.ErrStepConflict) ||
		errors.Is(err, persistence.ErrStatusConflict)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, persistence.ErrStepNotFound) ||
		errors.Is(err, persistence.ErrIssueNotFound)
}

// IsRejection checks if an error is a transition rejected by the engine.
func IsRejection(err error) bool {
	var transitionErr *TransitionError

	return errors.As(err, &transitionErr)
}
