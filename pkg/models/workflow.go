// Package models defines the domain model of the workflow transition engine.
package models

import "time"

// Workflow is a named state-machine definition scoped to a project and,
// optionally, narrowed to a single issue type.
type Workflow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"                 validate:"required"`
	Description string     `json:"description"`
	ProjectID   string     `json:"project_id"           validate:"required"`
	IssueType   string     `json:"issue_type,omitempty"` // Empty applies to every type of the project
	IsDefault   bool       `json:"is_default"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// AppliesToAllTypes reports whether the workflow is not narrowed to an issue type.
func (w *Workflow) AppliesToAllTypes() bool {
	return w.IssueType == ""
}

// Live reports whether the workflow can take part in resolution.
func (w *Workflow) Live() bool {
	return w.IsActive && w.DeletedAt == nil
}

// Overlaps reports whether both workflows are live in the same project and
// compete for the same issues: both defaults, or both bound to the same type.
func (w *Workflow) Overlaps(other *Workflow) bool {
	if w.ID == other.ID || w.ProjectID != other.ProjectID || !w.Live() || !other.Live() {
		return false
	}

	if w.IsDefault && other.IsDefault {
		return true
	}

	return w.IssueType != "" && w.IssueType == other.IssueType
}

// WorkflowDefinition is a workflow together with all of its steps and
// transitions, read and written as one consistent unit.
type WorkflowDefinition struct {
	Workflow    *Workflow             `json:"workflow"`
	Steps       []*WorkflowStep       `json:"steps"`
	Transitions []*WorkflowTransition `json:"transitions"`
}

// Step returns the step with the given id, or nil.
func (d *WorkflowDefinition) Step(id string) *WorkflowStep {
	for _, step := range d.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}
