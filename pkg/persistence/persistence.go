// Package persistence provides the storage abstraction for workflow definitions and the issue projection.
package persistence

import (
	"context"

	"github.com/dukex/issueflow/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	IssueRepository() IssueRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores workflows, their steps and their transitions.
// Soft-deleted workflows are invisible to every read.
type WorkflowRepository interface {
	// GetAll returns every workflow that has not been deleted.
	GetAll(ctx context.Context) ([]*models.Workflow, error)

	// GetByProject returns the workflows of a project, active or not.
	GetByProject(ctx context.Context, projectID string) ([]*models.Workflow, error)

	// GetByID returns ErrWorkflowNotFound when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// Save inserts or updates the workflow header. It returns ErrWorkflowConflict
	// when another active workflow already covers the same project and issue
	// type, or is already the project's default.
	Save(ctx context.Context, workflow *models.Workflow) error

	// Delete soft deletes the workflow.
	Delete(ctx context.Context, id string) error

	// SaveStep returns ErrStepConflict when the status label is taken.
	SaveStep(ctx context.Context, step *models.WorkflowStep) error
	GetSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error)

	SaveTransition(ctx context.Context, transition *models.WorkflowTransition) error
	GetTransitions(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error)

	// GetDefinition reads the workflow, its steps and its transitions as one
	// consistent snapshot.
	GetDefinition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error)
}

// IssueRepository exposes the part of the issue store the engine depends on.
type IssueRepository interface {
	Save(ctx context.Context, issue *models.Issue) error

	// GetByID returns ErrIssueNotFound when the issue does not exist.
	GetByID(ctx context.Context, id string) (*models.Issue, error)

	WorkflowContext(ctx context.Context, issueID string) (*models.IssueWorkflowContext, error)

	// IssueTypeCounts returns the number of issues of the project per issue type.
	IssueTypeCounts(ctx context.Context, projectID string) (map[string]int, error)

	// CompareAndSwapStatus moves the issue to next only if its status is still
	// expected, returning ErrStatusConflict otherwise.
	CompareAndSwapStatus(ctx context.Context, issueID, expected, next string) error
}
