// Package definition reads and writes portable workflow definition documents.
// A document describes one workflow with its steps and transitions; steps
// are referenced by status label so a document can move between stores.
package definition

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schema []byte

var schemaLoader = gojsonschema.NewBytesLoader(schema)

// ErrInvalidDocument is wrapped by every error describing a malformed document.
var ErrInvalidDocument = errors.New("invalid workflow definition document")

// InvalidDocumentError lists every problem found in a document.
type InvalidDocumentError struct {
	Problems []string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDocument, strings.Join(e.Problems, "; "))
}

func (e *InvalidDocumentError) Unwrap() error {
	return ErrInvalidDocument
}

type Document struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ProjectID   string       `json:"project_id"`
	IssueType   string       `json:"issue_type,omitempty"`
	IsDefault   bool         `json:"is_default"`
	IsActive    bool         `json:"is_active"`
	Steps       []Step       `json:"steps"`
	Transitions []Transition `json:"transitions"`
}

type Step struct {
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Order      int               `json:"order"`
	IsInitial  bool              `json:"is_initial,omitempty"`
	IsFinal    bool              `json:"is_final,omitempty"`
	Properties models.Properties `json:"properties,omitempty"`
}

// Transition references its endpoints by status label.
type Transition struct {
	Name          string                `json:"name"`
	From          string                `json:"from"`
	To            string                `json:"to"`
	Kind          models.TransitionKind `json:"kind,omitempty"`
	Conditions    []models.ExtensionRef `json:"conditions,omitempty"`
	RequiredRoles []string              `json:"required_roles,omitempty"`
	Validators    []models.ExtensionRef `json:"validators,omitempty"`
	PostFunctions []models.ExtensionRef `json:"post_functions,omitempty"`
	Properties    models.Properties     `json:"properties,omitempty"`
}

// Parse validates data against the document schema, then checks that step
// statuses are unique and that transitions only name known statuses. Every
// problem found is reported in one *InvalidDocumentError.
func Parse(data []byte) (*Document, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &InvalidDocumentError{Problems: []string{err.Error()}}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return nil, &InvalidDocumentError{Problems: problems}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidDocumentError{Problems: []string{err.Error()}}
	}

	if problems := doc.check(); len(problems) > 0 {
		return nil, &InvalidDocumentError{Problems: problems}
	}

	return &doc, nil
}

func (d *Document) check() []string {
	var problems []string

	statuses := make(map[string]bool, len(d.Steps))

	for i, step := range d.Steps {
		if statuses[step.Status] {
			problems = append(problems, fmt.Sprintf("steps.%d: status %q is used by another step", i, step.Status))
		}

		statuses[step.Status] = true
	}

	for i, transition := range d.Transitions {
		if !statuses[transition.From] {
			problems = append(problems, fmt.Sprintf("transitions.%d: from status %q is not a step", i, transition.From))
		}

		if !statuses[transition.To] {
			problems = append(problems, fmt.Sprintf("transitions.%d: to status %q is not a step", i, transition.To))
		}
	}

	if d.IsDefault && d.IssueType != "" {
		problems = append(problems, "is_default: a default workflow cannot be bound to an issue type")
	}

	return problems
}

// Marshal renders the document as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Workflow returns the workflow header described by the document.
func (d *Document) Workflow() *models.Workflow {
	return &models.Workflow{
		Name:        d.Name,
		Description: d.Description,
		ProjectID:   d.ProjectID,
		IssueType:   d.IssueType,
		IsDefault:   d.IsDefault,
		IsActive:    d.IsActive,
	}
}

// Model returns the step as a member of the workflow.
func (s Step) Model(workflowID string) *models.WorkflowStep {
	return &models.WorkflowStep{
		WorkflowID: workflowID,
		Name:       s.Name,
		Status:     s.Status,
		Order:      s.Order,
		IsInitial:  s.IsInitial,
		IsFinal:    s.IsFinal,
		Properties: s.Properties,
	}
}

// Model returns the transition between the two step ids.
func (t Transition) Model(workflowID, fromStepID, toStepID string) *models.WorkflowTransition {
	kind := t.Kind
	if kind == "" {
		kind = models.TransitionKindGlobal
	}

	return &models.WorkflowTransition{
		WorkflowID:    workflowID,
		FromStepID:    fromStepID,
		ToStepID:      toStepID,
		Name:          t.Name,
		Kind:          kind,
		Conditions:    t.Conditions,
		RequiredRoles: t.RequiredRoles,
		Validators:    t.Validators,
		PostFunctions: t.PostFunctions,
		Properties:    t.Properties,
	}
}

// FromDefinition renders a stored definition as a document. Store ids are
// dropped; transitions are rewritten to reference status labels.
func FromDefinition(def *models.WorkflowDefinition) (*Document, error) {
	if def == nil || def.Workflow == nil {
		return nil, errors.New("workflow definition is empty")
	}

	workflow := def.Workflow
	doc := &Document{
		Name:        workflow.Name,
		Description: workflow.Description,
		ProjectID:   workflow.ProjectID,
		IssueType:   workflow.IssueType,
		IsDefault:   workflow.IsDefault,
		IsActive:    workflow.IsActive,
		Steps:       make([]Step, 0, len(def.Steps)),
		Transitions: make([]Transition, 0, len(def.Transitions)),
	}

	statusOf := make(map[string]string, len(def.Steps))

	for _, step := range def.Steps {
		statusOf[step.ID] = step.Status
		doc.Steps = append(doc.Steps, Step{
			Name:       step.Name,
			Status:     step.Status,
			Order:      step.Order,
			IsInitial:  step.IsInitial,
			IsFinal:    step.IsFinal,
			Properties: step.Properties,
		})
	}

	for _, transition := range def.Transitions {
		from, fromOK := statusOf[transition.FromStepID]
		to, toOK := statusOf[transition.ToStepID]

		if !fromOK || !toOK {
			return nil, fmt.Errorf("%w: transition %s", models.ErrDanglingTransition, transition.ID)
		}

		doc.Transitions = append(doc.Transitions, Transition{
			Name:          transition.Name,
			From:          from,
			To:            to,
			Kind:          transition.Kind,
			Conditions:    transition.Conditions,
			RequiredRoles: transition.RequiredRoles,
			Validators:    transition.Validators,
			PostFunctions: transition.PostFunctions,
			Properties:    transition.Properties,
		})
	}

	return doc, nil
}
