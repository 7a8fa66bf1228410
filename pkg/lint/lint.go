// Package lint checks the structure of a workflow definition.
package lint

import (
	"fmt"

	"github.com/dukex/issueflow/pkg/models"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const (
	CodeNoInitialStep         = "no_initial_step"
	CodeMultipleInitialSteps  = "multiple_initial_steps"
	CodeDuplicateStatus       = "duplicate_status"
	CodeUnknownStep           = "unknown_step"
	CodeUnreachableStep       = "unreachable_step"
	CodeDuplicateTransition   = "duplicate_transition"
	CodeConditionalWithoutAny = "conditional_without_conditions"
)

type Finding struct {
	Severity     Severity `json:"severity"`
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	StepID       string   `json:"step_id,omitempty"`
	TransitionID string   `json:"transition_id,omitempty"`
}

// Check reports the structural problems of a definition, errors first in
// definition order, then warnings.
func Check(def *models.WorkflowDefinition) []Finding {
	var errs, warnings []Finding

	known := make(map[string]bool, len(def.Steps))
	statuses := make(map[string]string, len(def.Steps))

	var initial []*models.WorkflowStep

	for _, step := range def.Steps {
		known[step.ID] = true

		if other, ok := statuses[step.Status]; ok {
			errs = append(errs, Finding{
				Severity: SeverityError,
				Code:     CodeDuplicateStatus,
				Message:  fmt.Sprintf("status %q is used by steps %s and %s", step.Status, other, step.ID),
				StepID:   step.ID,
			})
		} else {
			statuses[step.Status] = step.ID
		}

		if step.IsInitial {
			initial = append(initial, step)
		}
	}

	switch {
	case len(def.Steps) > 0 && len(initial) == 0:
		errs = append(errs, Finding{
			Severity: SeverityError,
			Code:     CodeNoInitialStep,
			Message:  "no step is marked as initial",
		})
	case len(initial) > 1:
		for _, step := range initial[1:] {
			errs = append(errs, Finding{
				Severity: SeverityError,
				Code:     CodeMultipleInitialSteps,
				Message:  fmt.Sprintf("step %q is initial as well as %q", step.Status, initial[0].Status),
				StepID:   step.ID,
			})
		}
	}

	type edge struct{ from, to string }

	seen := make(map[edge]string, len(def.Transitions))

	for _, transition := range def.Transitions {
		for _, stepID := range []string{transition.FromStepID, transition.ToStepID} {
			if !known[stepID] {
				errs = append(errs, Finding{
					Severity:     SeverityError,
					Code:         CodeUnknownStep,
					Message:      fmt.Sprintf("transition %q references unknown step %s", transition.Name, stepID),
					TransitionID: transition.ID,
				})
			}
		}

		key := edge{transition.FromStepID, transition.ToStepID}
		if first, ok := seen[key]; ok {
			warnings = append(warnings, Finding{
				Severity:     SeverityWarning,
				Code:         CodeDuplicateTransition,
				Message:      fmt.Sprintf("transition %q connects the same steps as %q and is never matched", transition.Name, first),
				TransitionID: transition.ID,
			})
		} else {
			seen[key] = transition.Name
		}

		if transition.Kind == models.TransitionKindConditional && len(transition.Conditions) == 0 {
			warnings = append(warnings, Finding{
				Severity:     SeverityWarning,
				Code:         CodeConditionalWithoutAny,
				Message:      fmt.Sprintf("conditional transition %q has no conditions", transition.Name),
				TransitionID: transition.ID,
			})
		}
	}

	warnings = append(warnings, unreachable(def)...)

	return append(errs, warnings...)
}

// unreachable walks the graph from the initial steps. It reports nothing when
// the graph cannot be built or has no entry point, both already errors.
func unreachable(def *models.WorkflowDefinition) []Finding {
	graph, err := models.NewGraph(def)
	if err != nil {
		return nil
	}

	start := graph.Initial()
	if len(start) == 0 {
		return nil
	}

	var findings []Finding

	for index, reached := range graph.Reachable(start...) {
		if reached {
			continue
		}

		step := graph.Step(index)
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Code:     CodeUnreachableStep,
			Message:  fmt.Sprintf("step %q cannot be reached from the initial step", step.Status),
			StepID:   step.ID,
		})
	}

	return findings
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, finding := range findings {
		if finding.Severity == SeverityError {
			return true
		}
	}

	return false
}
