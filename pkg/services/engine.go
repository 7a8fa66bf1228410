package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/otelhelper"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dukex/issueflow/pkg/services"

// ValidateRequest asks whether an issue may move from CurrentStatus to NewStatus.
// An empty CurrentStatus means the status stored for the issue.
type ValidateRequest struct {
	IssueID       string   `json:"issue_id"       validate:"required"`
	CurrentStatus string   `json:"current_status"`
	NewStatus     string   `json:"new_status"     validate:"required"`
	UserID        string   `json:"user_id"`
	UserRoles     []string `json:"user_roles"`
}

// Engine answers transition questions against the workflow governing an issue.
// It never changes an issue.
type Engine struct {
	workflows   persistence.WorkflowRepository
	issues      persistence.IssueRepository
	resolver    *Resolver
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	validations metric.Int64Counter
}

// NewEngine creates the transition engine. A nil registry treats every
// extension reference as unregistered.
func NewEngine(
	workflows persistence.WorkflowRepository,
	issues persistence.IssueRepository,
	reg *registry.Registry,
	logger *slog.Logger,
) *Engine {
	validations, err := otel.Meter(instrumentationName).Int64Counter(
		"issueflow.transition.validations",
		metric.WithDescription("Transition validations by outcome"),
	)
	if err != nil {
		logger.Warn("Failed to create validations counter", "error", err)

		validations = noop.Int64Counter{}
	}

	return &Engine{
		workflows:   workflows,
		issues:      issues,
		resolver:    NewResolver(workflows),
		registry:    reg,
		logger:      logger,
		tracer:      otel.Tracer(instrumentationName),
		validations: validations,
	}
}

// Resolver returns the resolver the engine uses.
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Validate decides whether the requested status change is legal. The error is
// reserved for infrastructure failures; rejections are reported in the result.
func (e *Engine) Validate(ctx context.Context, req ValidateRequest) (*models.WorkflowValidationResult, error) {
	eval, err := e.check(ctx, req)
	if err != nil {
		return nil, err
	}

	return eval.result, nil
}

// check runs a traced and counted evaluation.
func (e *Engine) check(ctx context.Context, req ValidateRequest) (*evaluation, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.validate",
		otelhelper.TransitionAttributes(req.IssueID, req.CurrentStatus, req.NewStatus)...)
	defer span.End()

	eval, err := e.evaluate(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)
		e.validations.Add(ctx, 1, metric.WithAttributes(attribute.String(otelhelper.OutcomeKey, "error")))

		return nil, err
	}

	outcome := "valid"
	if !eval.result.IsValid {
		outcome = string(eval.result.Failure)
		otelhelper.SetRejected(span, outcome, eval.result.Errors[0])
		e.logger.DebugContext(ctx, "Transition rejected",
			"issue_id", req.IssueID,
			"failure", outcome,
			"error", eval.result.Errors[0],
		)
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, eval.result.WorkflowID),
		attribute.String(otelhelper.TransitionIDKey, eval.result.TransitionID),
	)
	e.validations.Add(ctx, 1, metric.WithAttributes(attribute.String(otelhelper.OutcomeKey, outcome)))

	return eval, nil
}

// Allowed lists the transitions leaving the issue's current step that the
// requester's roles permit.
func (e *Engine) Allowed(ctx context.Context, issueID string, userRoles []string) (*models.AllowedTransitionsResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.allowed",
		attribute.String(otelhelper.IssueIDKey, issueID),
	)
	defer span.End()

	result := &models.AllowedTransitionsResult{
		IssueID:     issueID,
		Transitions: []*models.WorkflowTransition{},
		Errors:      []string{},
	}

	reject := func(kind models.FailureKind, message string) (*models.AllowedTransitionsResult, error) {
		result.Failure = kind
		result.Errors = append(result.Errors, message)
		otelhelper.SetRejected(span, string(kind), message)

		return result, nil
	}

	snap, failure, err := e.snapshot(ctx, issueID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if snap.issue != nil {
		result.CurrentStatus = snap.issue.CurrentStatus
	}

	if snap.workflow != nil {
		result.WorkflowID = snap.workflow.ID
	}

	if failure != nil {
		return reject(failure.kind, failure.message)
	}

	current, ok := snap.graph.StepByStatus(snap.issue.CurrentStatus)
	if !ok {
		return reject(models.FailureUnknownState, currentStatusNotFound(snap.issue.CurrentStatus))
	}

	roles := models.NewRoleSet(userRoles...)

	for _, transition := range snap.graph.Outgoing(current) {
		if transition.PermitsAny(roles) {
			result.Transitions = append(result.Transitions, transition)
		}
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, result.WorkflowID))

	return result, nil
}

// evaluation is the outcome of a validation together with what an accepted
// transition needs to be applied.
type evaluation struct {
	result     *models.WorkflowValidationResult
	transition *models.WorkflowTransition
	tc         registry.TransitionContext
}

func (e *Engine) evaluate(ctx context.Context, req ValidateRequest) (*evaluation, error) {
	result := models.NewValidResult()
	eval := &evaluation{result: result}

	snap, failure, err := e.snapshot(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}

	if snap.workflow != nil {
		result.WorkflowID = snap.workflow.ID
	}

	if failure != nil {
		result.Reject(failure.kind, failure.message)

		return eval, nil
	}

	currentStatus := req.CurrentStatus
	if currentStatus == "" {
		currentStatus = snap.issue.CurrentStatus
	}

	graph := snap.graph

	current, ok := graph.StepByStatus(currentStatus)
	if !ok {
		result.Reject(models.FailureUnknownState, currentStatusNotFound(currentStatus))

		return eval, nil
	}

	target, ok := graph.StepByStatus(req.NewStatus)
	if !ok {
		result.Reject(models.FailureUnknownState, fmt.Sprintf("Target status '%s' not found in workflow", req.NewStatus))

		return eval, nil
	}

	edges := graph.Edges(current, target)
	if len(edges) == 0 {
		result.Reject(models.FailureTransitionNotAllowed,
			fmt.Sprintf("Transition from '%s' to '%s' is not allowed", currentStatus, req.NewStatus))

		for _, candidate := range graph.Outgoing(current) {
			result.AllowedTransitions = append(result.AllowedTransitions, models.AllowedTransition{
				TransitionID: candidate.ID,
				Name:         candidate.Name,
				ToStatus:     graph.Target(candidate).Status,
			})
		}

		return eval, nil
	}

	roles := models.NewRoleSet(req.UserRoles...)

	transition := edges[0]
	for _, edge := range edges {
		if edge.PermitsAny(roles) {
			transition = edge

			break
		}
	}

	result.TransitionID = transition.ID
	eval.transition = transition

	if !transition.PermitsAny(roles) {
		result.Reject(models.FailurePermission, "User does not have required role for this transition")

		return eval, nil
	}

	eval.tc = registry.TransitionContext{
		Issue:      snap.issue,
		Workflow:   graph.Workflow(),
		Transition: transition,
		From:       graph.Step(current),
		To:         graph.Step(target),
		UserID:     req.UserID,
		UserRoles:  req.UserRoles,
	}

	e.runExtensions(ctx, eval)

	return eval, nil
}

// runExtensions evaluates the conditions of a conditional transition, then its
// validators, stopping at the first rejection. Unregistered names are skipped
// with a warning.
func (e *Engine) runExtensions(ctx context.Context, eval *evaluation) {
	result, transition := eval.result, eval.transition

	if transition.Kind == models.TransitionKindConditional {
		for _, ref := range transition.Conditions {
			condition, ok := e.lookupCondition(ref.Name)
			if !ok {
				result.Warn(fmt.Sprintf("condition '%s' is not registered; treated as satisfied", ref.Name))

				continue
			}

			satisfied, err := condition.Evaluate(ctx, eval.tc, ref.Config)
			if err != nil {
				result.Reject(models.FailureConditionFailed,
					fmt.Sprintf("Condition '%s' could not be evaluated: %v", ref.Name, err))

				return
			}

			if !satisfied {
				result.Reject(models.FailureConditionFailed, fmt.Sprintf("Condition '%s' is not satisfied", ref.Name))

				return
			}
		}
	}

	for _, ref := range transition.Validators {
		validator, ok := e.lookupValidator(ref.Name)
		if !ok {
			result.Warn(fmt.Sprintf("validator '%s' is not registered; treated as satisfied", ref.Name))

			continue
		}

		if err := validator.Validate(ctx, eval.tc, ref.Config); err != nil {
			result.Reject(models.FailureValidatorRejected,
				fmt.Sprintf("Validator '%s' rejected the transition: %v", ref.Name, err))

			return
		}
	}
}

func (e *Engine) lookupCondition(name string) (registry.ConditionEvaluator, bool) {
	if e.registry == nil {
		return nil, false
	}

	return e.registry.Condition(name)
}

func (e *Engine) lookupValidator(name string) (registry.TransitionValidator, bool) {
	if e.registry == nil {
		return nil, false
	}

	return e.registry.Validator(name)
}

// issueSnapshot is the issue context with the graph of its workflow.
type issueSnapshot struct {
	issue    *models.IssueWorkflowContext
	workflow *models.Workflow
	graph    *models.Graph
}

type snapshotFailure struct {
	kind    models.FailureKind
	message string
}

// snapshot reads the issue context, resolves its workflow and builds the
// graph from one consistent definition read. Missing data is reported as a
// configuration failure, I/O problems as an error.
func (e *Engine) snapshot(ctx context.Context, issueID string) (*issueSnapshot, *snapshotFailure, error) {
	snap := &issueSnapshot{}

	issue, err := e.issues.WorkflowContext(ctx, issueID)
	if persistence.IsIssueNotFound(err) {
		return snap, &snapshotFailure{models.FailureConfiguration, fmt.Sprintf("Issue '%s' not found", issueID)}, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to read issue %s: %w", issueID, err)
	}

	snap.issue = issue

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelhelper.ProjectIDKey, issue.ProjectID),
		attribute.String(otelhelper.IssueTypeKey, issue.IssueType),
	)

	noWorkflow := &snapshotFailure{models.FailureConfiguration, "No workflow found for this issue"}

	workflow, err := e.resolver.Resolve(ctx, issue.ProjectID, issue.IssueType)
	if errors.Is(err, ErrNoWorkflow) {
		return snap, noWorkflow, nil
	}

	if err != nil {
		return nil, nil, err
	}

	snap.workflow = workflow
	trace.SpanFromContext(ctx).SetAttributes(otelhelper.WorkflowAttributes(workflow)...)

	definition, err := e.workflows.GetDefinition(ctx, workflow.ID)
	if persistence.IsWorkflowNotFound(err) {
		return snap, noWorkflow, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workflow %s: %w", workflow.ID, err)
	}

	graph, err := models.NewGraph(definition)
	if err != nil {
		return snap, &snapshotFailure{
			models.FailureConfiguration,
			fmt.Sprintf("Workflow '%s' is misconfigured: %s", workflow.Name, strings.ReplaceAll(err.Error(), "\n", "; ")),
		}, nil
	}

	snap.graph = graph

	return snap, nil, nil
}

func currentStatusNotFound(status string) string {
	return fmt.Sprintf("Current status '%s' not found in workflow", status)
}
