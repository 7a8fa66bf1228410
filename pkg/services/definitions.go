package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/dukex/issueflow/pkg/definition"
	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/events"
	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

// Definitions manages workflows, steps and transitions on behalf of project
// administrators.
type Definitions struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewDefinitions creates the definition service. A nil publisher disables
// lifecycle events.
func NewDefinitions(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Definitions {
	return &Definitions{
		persistence: p,
		publisher:   publisher,
		validate:    NewValidator(),
		logger:      logger,
	}
}

// NewValidator returns a validator reporting fields by their JSON name. It
// knows the notblank rule, which rejects whitespace-only strings.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// HealthCheck checks the health of the persistence layer.
func (d *Definitions) HealthCheck(ctx context.Context) (string, bool) {
	if d.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := d.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflow validates and stores a new workflow header.
func (d *Definitions) CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := d.checkWorkflow("CreateWorkflow", workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.DeletedAt = nil

	if err := d.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	d.publish(ctx, workflow.ID, events.WorkflowCreated{
		BaseEvent: events.NewBaseEvent(events.WorkflowCreatedEvent, workflow.ID, workflow.ProjectID),
		Name:      workflow.Name,
		IssueType: workflow.IssueType,
		IsDefault: workflow.IsDefault,
	})

	return workflow, nil
}

// ListByProject returns the workflows of a project, active or not.
func (d *Definitions) ListByProject(ctx context.Context, projectID string) ([]*models.Workflow, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, NewValidationError("ListByProject", "INVALID_PROJECT", "project id is required", ErrInvalidRequest)
	}

	workflows, err := d.persistence.WorkflowRepository().GetByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID.
func (d *Definitions) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return d.persistence.WorkflowRepository().GetByID(ctx, id)
}

// UpdateWorkflowRequest carries the fields a PATCH may change. Nil fields are
// left untouched; the project of a workflow never changes.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IssueType   *string `json:"issue_type"`
	IsDefault   *bool   `json:"is_default"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateWorkflow applies the request to an existing workflow.
func (d *Definitions) UpdateWorkflow(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	workflow, err := d.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		workflow.Name = *req.Name
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.IssueType != nil {
		workflow.IssueType = *req.IssueType
	}

	if req.IsDefault != nil {
		workflow.IsDefault = *req.IsDefault
	}

	if req.IsActive != nil {
		workflow.IsActive = *req.IsActive
	}

	if err := d.checkWorkflow("UpdateWorkflow", workflow); err != nil {
		return nil, err
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := d.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	d.publish(ctx, workflow.ID, events.WorkflowUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowUpdatedEvent, workflow.ID, workflow.ProjectID),
		Name:      workflow.Name,
		IssueType: workflow.IssueType,
		IsDefault: workflow.IsDefault,
		IsActive:  workflow.IsActive,
	})

	return workflow, nil
}

// DeleteWorkflow soft deletes a workflow. It fails with ErrWorkflowInUse while
// any issue of the project resolves to it; such workflows are deactivated
// instead.
func (d *Definitions) DeleteWorkflow(ctx context.Context, id string) error {
	repo := d.persistence.WorkflowRepository()

	workflow, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	inUse, err := d.governsIssues(ctx, workflow)
	if err != nil {
		return err
	}

	if len(inUse) > 0 {
		return NewValidationError(
			"DeleteWorkflow",
			"WORKFLOW_IN_USE",
			fmt.Sprintf("workflow '%s' governs issues of type %s; deactivate it instead", workflow.Name, strings.Join(inUse, ", ")),
			ErrWorkflowInUse,
		)
	}

	if err := repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	d.publish(ctx, workflow.ID, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, workflow.ID, workflow.ProjectID),
	})

	return nil
}

// governsIssues returns the quoted, sorted issue types whose existing issues
// currently resolve to the workflow.
func (d *Definitions) governsIssues(ctx context.Context, workflow *models.Workflow) ([]string, error) {
	if !workflow.Live() {
		return nil, nil
	}

	counts, err := d.persistence.IssueRepository().IssueTypeCounts(ctx, workflow.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues of project %s: %w", workflow.ProjectID, err)
	}

	if len(counts) == 0 {
		return nil, nil
	}

	workflows, err := d.persistence.WorkflowRepository().GetByProject(ctx, workflow.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows of project %s: %w", workflow.ProjectID, err)
	}

	var types []string

	for issueType, count := range counts {
		if count == 0 {
			continue
		}

		if resolved := ResolveWorkflow(workflows, issueType); resolved != nil && resolved.ID == workflow.ID {
			types = append(types, fmt.Sprintf("'%s'", issueType))
		}
	}

	slices.Sort(types)

	return types, nil
}

// CreateStep adds a step to the workflow.
func (d *Definitions) CreateStep(ctx context.Context, workflowID string, step *models.WorkflowStep) (*models.WorkflowStep, error) {
	repo := d.persistence.WorkflowRepository()

	workflow, err := repo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	existing, err := repo.GetSteps(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}

	step.WorkflowID = workflowID
	violations := d.structViolations(step)

	for _, other := range existing {
		if step.Status != "" && other.Status == step.Status {
			violations = append(violations, Violation{
				Field:   "status",
				Message: fmt.Sprintf("status '%s' is already used by step '%s'", step.Status, other.Name),
			})
		}

		if step.IsInitial && other.IsInitial {
			violations = append(violations, Violation{
				Field:   "is_initial",
				Message: fmt.Sprintf("step '%s' is already the initial step", other.Name),
			})
		}
	}

	if len(violations) > 0 {
		return nil, &DefinitionValidationError{Op: "CreateStep", Violations: violations}
	}

	step.ID = uuid.New().String()

	if err := repo.SaveStep(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to create step: %w", err)
	}

	d.publish(ctx, workflowID, events.StepCreated{
		BaseEvent: events.NewBaseEvent(events.StepCreatedEvent, workflowID, workflow.ProjectID),
		StepID:    step.ID,
		Status:    step.Status,
	})

	return step, nil
}

// Steps returns the steps of the workflow in definition order.
func (d *Definitions) Steps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	if _, err := d.persistence.WorkflowRepository().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return d.persistence.WorkflowRepository().GetSteps(ctx, workflowID)
}

// CreateTransition adds a transition between two steps of the workflow. An
// empty kind means global; roles are deduplicated ignoring case. Two steps are
// connected by at most one transition.
func (d *Definitions) CreateTransition(
	ctx context.Context,
	workflowID string,
	transition *models.WorkflowTransition,
) (*models.WorkflowTransition, error) {
	repo := d.persistence.WorkflowRepository()

	workflow, err := repo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	steps, err := repo.GetSteps(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}

	existing, err := repo.GetTransitions(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}

	transition.WorkflowID = workflowID

	if transition.Kind == "" {
		transition.Kind = models.TransitionKindGlobal
	}

	violations := d.structViolations(transition)
	transition.RequiredRoles = models.DedupeRoles(transition.RequiredRoles)

	known := make(map[string]bool, len(steps))
	for _, step := range steps {
		known[step.ID] = true
	}

	if transition.FromStepID != "" && !known[transition.FromStepID] {
		violations = append(violations, Violation{
			Field:   "from_step_id",
			Message: fmt.Sprintf("step '%s' is not a step of workflow '%s'", transition.FromStepID, workflow.Name),
		})
	}

	if transition.ToStepID != "" && !known[transition.ToStepID] {
		violations = append(violations, Violation{
			Field:   "to_step_id",
			Message: fmt.Sprintf("step '%s' is not a step of workflow '%s'", transition.ToStepID, workflow.Name),
		})
	}

	for _, other := range existing {
		if other.FromStepID == transition.FromStepID && other.ToStepID == transition.ToStepID {
			violations = append(violations, Violation{
				Field:   "to_step_id",
				Message: fmt.Sprintf("transition '%s' already connects these steps", other.Name),
			})

			break
		}
	}

	if len(violations) > 0 {
		return nil, &DefinitionValidationError{Op: "CreateTransition", Violations: violations}
	}

	transition.ID = uuid.New().String()

	if err := repo.SaveTransition(ctx, transition); err != nil {
		return nil, fmt.Errorf("failed to create transition: %w", err)
	}

	d.publish(ctx, workflowID, events.TransitionCreated{
		BaseEvent:    events.NewBaseEvent(events.TransitionCreatedEvent, workflowID, workflow.ProjectID),
		TransitionID: transition.ID,
		FromStepID:   transition.FromStepID,
		ToStepID:     transition.ToStepID,
	})

	return transition, nil
}

// Transitions returns the transitions of the workflow in definition order.
func (d *Definitions) Transitions(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	if _, err := d.persistence.WorkflowRepository().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return d.persistence.WorkflowRepository().GetTransitions(ctx, workflowID)
}

// Definition returns the workflow with its steps and transitions.
func (d *Definitions) Definition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	return d.persistence.WorkflowRepository().GetDefinition(ctx, workflowID)
}

// WorkflowForIssue resolves the workflow governing the issue.
func (d *Definitions) WorkflowForIssue(ctx context.Context, issueID string) (*models.Workflow, error) {
	issue, err := d.persistence.IssueRepository().WorkflowContext(ctx, issueID)
	if err != nil {
		return nil, err
	}

	return NewResolver(d.persistence.WorkflowRepository()).Resolve(ctx, issue.ProjectID, issue.IssueType)
}

// Import creates the workflow described by the document together with its
// steps and transitions. A failure after the workflow was created deletes it
// again.
func (d *Definitions) Import(ctx context.Context, doc *definition.Document) (*models.WorkflowDefinition, error) {
	workflow, err := d.CreateWorkflow(ctx, doc.Workflow())
	if err != nil {
		return nil, err
	}

	result, err := d.importGraph(ctx, workflow, doc)
	if err != nil {
		if rollbackErr := d.persistence.WorkflowRepository().Delete(ctx, workflow.ID); rollbackErr != nil {
			d.logger.ErrorContext(ctx, "Failed to remove partially imported workflow",
				"workflow_id", workflow.ID,
				"error", rollbackErr,
			)
		}

		return nil, err
	}

	return result, nil
}

func (d *Definitions) importGraph(
	ctx context.Context,
	workflow *models.Workflow,
	doc *definition.Document,
) (*models.WorkflowDefinition, error) {
	result := &models.WorkflowDefinition{Workflow: workflow}
	byStatus := make(map[string]string, len(doc.Steps))

	for i, s := range doc.Steps {
		step, err := d.CreateStep(ctx, workflow.ID, s.Model(workflow.ID))
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Status, err)
		}

		byStatus[step.Status] = step.ID
		result.Steps = append(result.Steps, step)
	}

	for i, t := range doc.Transitions {
		from, fromOK := byStatus[t.From]
		to, toOK := byStatus[t.To]

		if !fromOK || !toOK {
			return nil, &DefinitionValidationError{
				Op:         "Import",
				Violations: []Violation{{Field: fmt.Sprintf("transitions.%d", i), Message: "references an unknown status"}},
			}
		}

		transition, err := d.CreateTransition(ctx, workflow.ID, t.Model(workflow.ID, from, to))
		if err != nil {
			return nil, fmt.Errorf("transition %d (%s): %w", i, t.Name, err)
		}

		result.Transitions = append(result.Transitions, transition)
	}

	return result, nil
}

// Export renders the stored workflow as a portable document.
func (d *Definitions) Export(ctx context.Context, workflowID string) (*definition.Document, error) {
	def, err := d.persistence.WorkflowRepository().GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return definition.FromDefinition(def)
}

func (d *Definitions) checkWorkflow(op string, workflow *models.Workflow) error {
	workflow.Name = strings.TrimSpace(workflow.Name)
	workflow.IssueType = strings.TrimSpace(workflow.IssueType)

	violations := d.structViolations(workflow)

	if workflow.IsDefault && workflow.IssueType != "" {
		violations = append(violations, Violation{
			Field:   "is_default",
			Message: "a default workflow cannot be bound to an issue type",
		})
	}

	if len(violations) > 0 {
		return &DefinitionValidationError{Op: op, Violations: violations}
	}

	return nil
}

// structViolations turns the validator's field errors into violations.
func (d *Definitions) structViolations(value any) []Violation {
	err := d.validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Field: "", Message: err.Error()}}
	}

	violations := make([]Violation, 0, len(fieldErrs))

	for _, fe := range fieldErrs {
		violations = append(violations, Violation{Field: fieldPath(fe), Message: ruleMessage(fe)})
	}

	return violations
}

// fieldPath drops the struct name from the namespace: "WorkflowTransition.conditions[0].name"
// becomes "conditions[0].name".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}

	return path
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

func (d *Definitions) publish(ctx context.Context, key string, event eventbus.Event) {
	if d.publisher == nil {
		return
	}

	if err := d.publisher.Publish(ctx, key, event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err,
		)
	}
}
