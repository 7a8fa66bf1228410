package web

import (
	"errors"

	"github.com/dukex/issueflow/pkg/definition"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// violationsProblem is a validation problem listing every broken rule.
type violationsProblem struct {
	*problems.Problem

	Violations []services.Violation `json:"violations,omitempty"`
	Problems   []string             `json:"problems,omitempty"`
}

// rejectionProblem is returned when the engine refuses a transition.
type rejectionProblem struct {
	*problems.Problem

	Result any `json:"result"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		definitionErr *services.DefinitionValidationError
		documentErr   *definition.InvalidDocumentError
		transitionErr *services.TransitionError
	)

	switch {
	case errors.As(err, &definitionErr):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("invalid_definition").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(violationsProblem{
			Problem:    problem,
			Violations: definitionErr.Violations,
		})

	case errors.As(err, &documentErr):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("invalid_document").
			WithDetail("workflow definition document is invalid")

		return c.Status(fiber.StatusBadRequest).JSON(violationsProblem{
			Problem:  problem,
			Problems: documentErr.Problems,
		})

	case errors.Is(err, definition.ErrInvalidDocument), services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.As(err, &transitionErr):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType(string(transitionErr.Result.Failure)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(rejectionProblem{
			Problem: problem,
			Result:  transitionErr.Result,
		})

	case persistence.IsStatusConflict(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("status_conflict").
			WithDetail("issue status changed concurrently, reload and retry")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsStepNotFound(err):
		return notFound(c, "step_not_found", "step not found")

	case persistence.IsIssueNotFound(err):
		return notFound(c, "issue_not_found", "issue not found")

	case errors.Is(err, services.ErrNoWorkflow):
		return notFound(c, "no_workflow", "No workflow found for this issue")

	default:
		return internalError(c, err)
	}
}
