package models

// TransitionKind tells whether a transition is evaluated against conditions.
type TransitionKind string

const (
	TransitionKindGlobal      TransitionKind = "global"
	TransitionKindConditional TransitionKind = "conditional"
)

// ExtensionRef points at a named evaluator in the extension registry.
type ExtensionRef struct {
	Name   string     `json:"name"             validate:"required"`
	Config Properties `json:"config,omitempty"`
}

// WorkflowTransition is a directed, role-gated edge between two steps of the
// same workflow. An empty RequiredRoles set leaves the transition unrestricted.
type WorkflowTransition struct {
	ID            string         `json:"id"`
	WorkflowID    string         `json:"workflow_id"`
	FromStepID    string         `json:"from_step_id"             validate:"required"`
	ToStepID      string         `json:"to_step_id"               validate:"required"`
	Name          string         `json:"name"                     validate:"required"`
	Kind          TransitionKind `json:"kind"                     validate:"required,oneof=global conditional"`
	Conditions    []ExtensionRef `json:"conditions,omitempty"     validate:"dive"`
	RequiredRoles []string       `json:"required_roles,omitempty" validate:"dive,notblank"`
	Validators    []ExtensionRef `json:"validators,omitempty"     validate:"dive"`
	PostFunctions []ExtensionRef `json:"post_functions,omitempty" validate:"dive"`
	Properties    Properties     `json:"properties,omitempty"`
}

// Unrestricted reports whether any requester may take the transition.
func (t *WorkflowTransition) Unrestricted() bool {
	return len(t.RequiredRoles) == 0
}

// PermitsAny reports whether the transition may be taken by a requester
// holding the given roles.
func (t *WorkflowTransition) PermitsAny(roles RoleSet) bool {
	if t.Unrestricted() {
		return true
	}

	return roles.ContainsAny(t.RequiredRoles)
}
