package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
)

// Resolver finds the workflow that governs an issue.
type Resolver struct {
	workflows persistence.WorkflowRepository
}

// NewResolver creates a resolver reading the project's workflows from repo.
func NewResolver(repo persistence.WorkflowRepository) *Resolver {
	return &Resolver{workflows: repo}
}

// Resolve returns the workflow applicable to issues of issueType in the
// project, or ErrNoWorkflow.
func (r *Resolver) Resolve(ctx context.Context, projectID, issueType string) (*models.Workflow, error) {
	workflows, err := r.workflows.GetByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows of project %s: %w", projectID, err)
	}

	workflow := ResolveWorkflow(workflows, issueType)
	if workflow == nil {
		return nil, ErrNoWorkflow
	}

	return workflow, nil
}

// ResolveWorkflow picks, among the workflows of one project, the live one bound
// to issueType, falling back to the live default. Ties break on the oldest
// creation time, then on id. It returns nil when nothing applies.
func ResolveWorkflow(workflows []*models.Workflow, issueType string) *models.Workflow {
	var typed, fallback *models.Workflow

	for _, workflow := range workflows {
		if !workflow.Live() {
			continue
		}

		switch {
		case issueType != "" && workflow.IssueType == issueType:
			typed = earliest(typed, workflow)
		case workflow.AppliesToAllTypes() && workflow.IsDefault:
			fallback = earliest(fallback, workflow)
		}
	}

	if typed != nil {
		return typed
	}

	return fallback
}

func earliest(current, candidate *models.Workflow) *models.Workflow {
	if current == nil {
		return candidate
	}

	if c := candidate.CreatedAt.Compare(current.CreatedAt); c != 0 {
		if c < 0 {
			return candidate
		}

		return current
	}

	if strings.Compare(candidate.ID, current.ID) < 0 {
		return candidate
	}

	return current
}
