// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/google/uuid"
)

// CreateTestWorkflow creates a test Workflow with default values that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Software Development",
		Description: "Default workflow for software issues",
		ProjectID:   "project-1",
		IsDefault:   true,
		IsActive:    true,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithIssueType narrows the workflow to one issue type.
func WithIssueType(issueType string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IssueType = issueType
		w.IsDefault = false
	}
}

// WithProject sets the project of the workflow.
func WithProject(projectID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.ProjectID = projectID
	}
}

// Inactive marks the workflow as retired.
func Inactive() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IsActive = false
	}
}

// CreateTestStep creates a step of the workflow carrying the given status label.
func CreateTestStep(workflowID, status string, overrides ...func(*models.WorkflowStep)) *models.WorkflowStep {
	step := &models.WorkflowStep{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Name:       status,
		Status:     status,
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// Initial marks the step as the entry step.
func Initial() func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.IsInitial = true
	}
}

// Final marks the step as final.
func Final() func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.IsFinal = true
	}
}

// CreateTestTransition creates a global transition between two steps.
func CreateTestTransition(
	from, to *models.WorkflowStep,
	name string,
	roles ...string,
) *models.WorkflowTransition {
	return &models.WorkflowTransition{
		ID:            uuid.New().String(),
		WorkflowID:    from.WorkflowID,
		FromStepID:    from.ID,
		ToStepID:      to.ID,
		Name:          name,
		Kind:          models.TransitionKindGlobal,
		RequiredRoles: roles,
	}
}

// SoftwareWorkflow builds the classic Open / InProgress / Resolved / Closed
// workflow with role-gated transitions, including a Reopen edge leaving the
// final step.
func SoftwareWorkflow(overrides ...func(*models.Workflow)) *models.WorkflowDefinition {
	workflow := CreateTestWorkflow(overrides...)

	open := CreateTestStep(workflow.ID, "Open", Initial(), func(s *models.WorkflowStep) { s.Order = 1 })
	inProgress := CreateTestStep(workflow.ID, "InProgress", func(s *models.WorkflowStep) { s.Order = 2 })
	resolved := CreateTestStep(workflow.ID, "Resolved", func(s *models.WorkflowStep) { s.Order = 3 })
	closed := CreateTestStep(workflow.ID, "Closed", Final(), func(s *models.WorkflowStep) { s.Order = 4 })

	return &models.WorkflowDefinition{
		Workflow: workflow,
		Steps:    []*models.WorkflowStep{open, inProgress, resolved, closed},
		Transitions: []*models.WorkflowTransition{
			CreateTestTransition(open, inProgress, "Start Progress", "Developer", "Tester"),
			CreateTestTransition(inProgress, resolved, "Resolve Issue", "Developer", "Tester"),
			CreateTestTransition(resolved, closed, "Close Issue", "Admin"),
			CreateTestTransition(closed, open, "Reopen Issue", "Admin"),
			CreateTestTransition(inProgress, open, "Stop Progress", "Developer", "Tester"),
		},
	}
}

// StepByStatus returns the step of the definition carrying the status label.
func StepByStatus(definition *models.WorkflowDefinition, status string) *models.WorkflowStep {
	for _, step := range definition.Steps {
		if step.Status == status {
			return step
		}
	}

	return nil
}

// TransitionByName returns the transition of the definition with the given name.
func TransitionByName(definition *models.WorkflowDefinition, name string) *models.WorkflowTransition {
	for _, transition := range definition.Transitions {
		if transition.Name == name {
			return transition
		}
	}

	return nil
}

// CreateTestIssue creates an issue of the project sitting at the given status.
func CreateTestIssue(projectID, issueType, status string) *models.Issue {
	return &models.Issue{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		IssueType: issueType,
		Status:    status,
	}
}

// SaveDefinition stores the workflow, then its steps, then its transitions.
func SaveDefinition(ctx context.Context, repo persistence.WorkflowRepository, definition *models.WorkflowDefinition) error {
	if err := repo.Save(ctx, definition.Workflow); err != nil {
		return err
	}

	for _, step := range definition.Steps {
		if err := repo.SaveStep(ctx, step); err != nil {
			return err
		}
	}

	for _, transition := range definition.Transitions {
		if err := repo.SaveTransition(ctx, transition); err != nil {
			return err
		}
	}

	return nil
}
