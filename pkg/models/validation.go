package models

// FailureKind classifies why a transition request was rejected.
type FailureKind string

const (
	FailureNone                 FailureKind = ""
	FailureConfiguration        FailureKind = "configuration"          // No workflow resolvable for the issue
	FailureUnknownState         FailureKind = "unknown_state"          // Status has no matching step
	FailureTransitionNotAllowed FailureKind = "transition_not_allowed" // No edge between the steps
	FailurePermission           FailureKind = "permission"             // Edge exists, roles do not match
	FailureConditionFailed      FailureKind = "condition_failed"
	FailureValidatorRejected    FailureKind = "validator_rejected"
)

// AllowedTransition describes an alternative the requester could attempt.
type AllowedTransition struct {
	TransitionID string `json:"transition_id"`
	Name         string `json:"name"`
	ToStatus     string `json:"to_status"`
}

// WorkflowValidationResult is the verdict on a requested status change.
type WorkflowValidationResult struct {
	IsValid            bool                `json:"is_valid"`
	Errors             []string            `json:"errors"`
	Warnings           []string            `json:"warnings"`
	AllowedTransitions []AllowedTransition `json:"allowed_transitions"`
	Failure            FailureKind         `json:"failure,omitempty"`
	WorkflowID         string              `json:"workflow_id,omitempty"`
	TransitionID       string              `json:"transition_id,omitempty"`
}

// NewValidResult returns an accepting verdict.
func NewValidResult() *WorkflowValidationResult {
	return &WorkflowValidationResult{
		IsValid:            true,
		Errors:             []string{},
		Warnings:           []string{},
		AllowedTransitions: []AllowedTransition{},
	}
}

// Reject turns the result into a rejection of the given kind.
func (r *WorkflowValidationResult) Reject(kind FailureKind, message string) *WorkflowValidationResult {
	r.IsValid = false
	r.Failure = kind
	r.Errors = append(r.Errors, message)

	return r
}

// Warn appends a warning without changing the verdict.
func (r *WorkflowValidationResult) Warn(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AllowedTransitionsResult lists the transitions a requester may take from
// the issue's current step.
type AllowedTransitionsResult struct {
	IssueID       string                `json:"issue_id"`
	WorkflowID    string                `json:"workflow_id,omitempty"`
	CurrentStatus string                `json:"current_status"`
	Transitions   []*WorkflowTransition `json:"transitions"`
	Failure       FailureKind           `json:"failure,omitempty"`
	Errors        []string              `json:"errors"`
}
