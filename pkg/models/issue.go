package models

import "time"

// IssueWorkflowContext is what the engine needs to know about an issue to
// resolve and walk its workflow.
type IssueWorkflowContext struct {
	IssueID       string `json:"issue_id"`
	ProjectID     string `json:"project_id"`
	IssueType     string `json:"issue_type"`
	CurrentStatus string `json:"current_status"`
}

// Issue is the projection of an issue record kept by the bundled stores.
// The full issue lives elsewhere; only the fields driving the workflow are kept.
type Issue struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	IssueType string    `json:"issue_type"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowContext returns the workflow facts of the issue.
func (i *Issue) WorkflowContext() *IssueWorkflowContext {
	return &IssueWorkflowContext{
		IssueID:       i.ID,
		ProjectID:     i.ProjectID,
		IssueType:     i.IssueType,
		CurrentStatus: i.Status,
	}
}
