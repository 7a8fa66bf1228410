package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestResultError(t *testing.T) {
	assert.NoError(t, ResultError(nil))
	assert.NoError(t, ResultError(models.NewValidResult()))

	tests := []struct {
		kind     models.FailureKind
		sentinel error
	}{
		{models.FailureConfiguration, ErrNoWorkflow},
		{models.FailureUnknownState, ErrUnknownState},
		{models.FailureTransitionNotAllowed, ErrTransitionNotAllowed},
		{models.FailurePermission, ErrPermissionDenied},
		{models.FailureConditionFailed, ErrConditionFailed},
		{models.FailureValidatorRejected, ErrValidatorRejected},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			result := models.NewValidResult().Reject(tt.kind, "rejected")

			err := fmt.Errorf("apply: %w", ResultError(result))

			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsRejection(err))

			var transitionErr *TransitionError
			assert.ErrorAs(t, err, &transitionErr)
			assert.Same(t, result, transitionErr.Result)
		})
	}
}

func TestDefinitionValidationError(t *testing.T) {
	err := &DefinitionValidationError{
		Op: "CreateStep",
		Violations: []Violation{
			{Field: "name", Message: "is required"},
			{Field: "status", Message: "is required"},
		},
	}

	assert.Equal(t, "CreateStep: name: is required; status: is required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.True(t, IsValidationError(err))
}

func TestErrorClassification(t *testing.T) {
	notFound := persistence.NewWorkflowError("GetByID", "wf-1", persistence.ErrWorkflowNotFound)
	conflict := persistence.NewWorkflowError("Save", "wf-1", persistence.ErrWorkflowConflict)
	inUse := NewValidationError("DeleteWorkflow", "WORKFLOW_IN_USE", "in use", ErrWorkflowInUse)

	assert.True(t, IsNotFoundError(notFound))
	assert.False(t, IsConflictError(notFound))
	assert.True(t, IsConflictError(conflict))
	assert.True(t, IsConflictError(inUse))
	assert.Equal(t, "DeleteWorkflow: in use", inUse.Error())
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.False(t, IsRejection(conflict))
}
