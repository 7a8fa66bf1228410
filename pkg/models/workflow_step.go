package models

// Properties is an opaque, string-keyed extension bag.
type Properties map[string]any

// WorkflowStep is a named state of a workflow. Status is the label stored on
// the issue record and must be unique within the workflow.
type WorkflowStep struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Name       string     `json:"name"                 validate:"required"`
	Status     string     `json:"status"               validate:"required"`
	Order      int        `json:"order"`
	IsInitial  bool       `json:"is_initial"`
	IsFinal    bool       `json:"is_final"` // Hint only, final steps may have outgoing transitions
	Properties Properties `json:"properties,omitempty"`
}
