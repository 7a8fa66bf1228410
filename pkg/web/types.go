// Package web provides the HTTP handlers and request types of the workflow API.
package web

import (
	"strings"

	"github.com/dukex/issueflow/pkg/lint"
	"github.com/dukex/issueflow/pkg/models"
)

const (
	// UserIDHeader carries the authenticated user, set by the upstream gateway.
	UserIDHeader = "X-User-ID"
	// UserRolesHeader carries the user's project roles, comma separated.
	UserRolesHeader = "X-User-Roles"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"  validate:"required"`
	IssueType   string `json:"issue_type"`
	IsDefault   bool   `json:"is_default"`
	IsActive    *bool  `json:"is_active"`
}

// Workflow builds the workflow header. Workflows are active unless stated otherwise.
func (r CreateWorkflowRequest) Workflow() *models.Workflow {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		ProjectID:   r.ProjectID,
		IssueType:   r.IssueType,
		IsDefault:   r.IsDefault,
		IsActive:    active,
	}
}

// CreateStepRequest represents the request body for adding a step to a workflow.
type CreateStepRequest struct {
	Name       string            `json:"name"       validate:"required"`
	Status     string            `json:"status"     validate:"required"`
	Order      int               `json:"order"`
	IsInitial  bool              `json:"is_initial"`
	IsFinal    bool              `json:"is_final"`
	Properties models.Properties `json:"properties"`
}

// Step builds the step of the given workflow.
func (r CreateStepRequest) Step(workflowID string) *models.WorkflowStep {
	return &models.WorkflowStep{
		WorkflowID: workflowID,
		Name:       r.Name,
		Status:     r.Status,
		Order:      r.Order,
		IsInitial:  r.IsInitial,
		IsFinal:    r.IsFinal,
		Properties: r.Properties,
	}
}

// CreateTransitionRequest represents the request body for adding a transition.
// Field rules are enforced by the definition service so that every violation
// is reported at once.
type CreateTransitionRequest struct {
	Name          string                `json:"name"`
	FromStepID    string                `json:"from_step_id"`
	ToStepID      string                `json:"to_step_id"`
	Kind          models.TransitionKind `json:"kind"`
	Conditions    []models.ExtensionRef `json:"conditions"`
	RequiredRoles []string              `json:"required_roles"`
	Validators    []models.ExtensionRef `json:"validators"`
	PostFunctions []models.ExtensionRef `json:"post_functions"`
	Properties    models.Properties     `json:"properties"`
}

// Transition builds the transition of the given workflow.
func (r CreateTransitionRequest) Transition(workflowID string) *models.WorkflowTransition {
	return &models.WorkflowTransition{
		WorkflowID:    workflowID,
		FromStepID:    r.FromStepID,
		ToStepID:      r.ToStepID,
		Name:          r.Name,
		Kind:          r.Kind,
		Conditions:    r.Conditions,
		RequiredRoles: r.RequiredRoles,
		Validators:    r.Validators,
		PostFunctions: r.PostFunctions,
		Properties:    r.Properties,
	}
}

// ValidateTransitionRequest asks whether an issue may move to NewStatus.
// CurrentStatus defaults to the stored status of the issue.
type ValidateTransitionRequest struct {
	CurrentStatus string `json:"current_status"`
	NewStatus     string `json:"new_status"     validate:"required"`
}

// ApplyTransitionRequest moves an issue to NewStatus. When ExpectedStatus is
// set the move only happens if the issue is still in that status.
type ApplyTransitionRequest struct {
	ExpectedStatus string `json:"expected_status"`
	NewStatus      string `json:"new_status"      validate:"required"`
}

// LintResponse lists the structural findings of a workflow.
type LintResponse struct {
	WorkflowID string         `json:"workflow_id"`
	Valid      bool           `json:"valid"`
	Findings   []lint.Finding `json:"findings"`
}

// ParseRoles splits a comma separated role header, dropping blanks.
func ParseRoles(header string) []string {
	roles := []string{}

	for role := range strings.SplitSeq(header, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}

	return roles
}
