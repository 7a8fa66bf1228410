package web

import (
	"net/http"
	"time"

	"github.com/dukex/issueflow/pkg/definition"
	"github.com/dukex/issueflow/pkg/lint"
	"github.com/dukex/issueflow/pkg/registry"
	"github.com/dukex/issueflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	definitions *services.Definitions
	engine      *services.Engine
	transitions *services.IssueTransitions
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	definitions *services.Definitions,
	engine *services.Engine,
	transitions *services.IssueTransitions,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		definitions: definitions,
		engine:      engine,
		transitions: transitions,
		validator:   validator,
		registry:    registry,
	}
}

// Register mounts every route on the router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/projects/:projectId/workflows", h.GetProjectWorkflows)

	w := router.Group("/workflows")
	w.Post("/", h.CreateWorkflow)
	w.Post("/import", h.ImportWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/steps", h.CreateStep)
	w.Get("/:id/steps", h.GetSteps)
	w.Post("/:id/transitions", h.CreateTransition)
	w.Get("/:id/transitions", h.GetTransitions)
	w.Get("/:id/lint", h.LintWorkflow)
	w.Get("/:id/export", h.ExportWorkflow)

	i := router.Group("/issues/:issueId")
	i.Get("/workflow", h.GetIssueWorkflow)
	i.Post("/transitions/validate", h.ValidateTransition)
	i.Get("/transitions", h.GetAllowedTransitions)
	i.Post("/transitions", h.ApplyTransition)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.definitions.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Issueflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Issueflow API is healthy"
		httpStatus = http.StatusOK
	}

	checkers := fiber.Map{"repository": repositoryCheck}
	if h.registry != nil {
		checkers["registry"] = h.registry.Names()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"checkers":  checkers,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetProjectWorkflows(c fiber.Ctx) error {
	workflows, err := h.definitions.ListByProject(c.Context(), c.Params("projectId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitions.CreateWorkflow(c.Context(), req.Workflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.definitions.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req services.UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.definitions.UpdateWorkflow(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.definitions.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflowID := c.Params("id")

	step, err := h.definitions.CreateStep(c.Context(), workflowID, req.Step(workflowID))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	steps, err := h.definitions.Steps(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

func (h *APIHandlers) CreateTransition(c fiber.Ctx) error {
	var req CreateTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflowID := c.Params("id")

	transition, err := h.definitions.CreateTransition(c.Context(), workflowID, req.Transition(workflowID))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transition)
}

func (h *APIHandlers) GetTransitions(c fiber.Ctx) error {
	transitions, err := h.definitions.Transitions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transitions)
}

func (h *APIHandlers) LintWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	def, err := h.definitions.Definition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	findings := lint.Check(def)

	return c.JSON(LintResponse{
		WorkflowID: id,
		Valid:      !lint.HasErrors(findings),
		Findings:   findings,
	})
}

func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	doc, err := h.definitions.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	doc, err := definition.Parse(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	imported, err := h.definitions.Import(c.Context(), doc)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(imported)
}

func (h *APIHandlers) GetIssueWorkflow(c fiber.Ctx) error {
	workflow, err := h.definitions.WorkflowForIssue(c.Context(), c.Params("issueId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// ValidateTransition answers with the verdict whether or not the move is legal.
func (h *APIHandlers) ValidateTransition(c fiber.Ctx) error {
	var req ValidateTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Validate(c.Context(), services.ValidateRequest{
		IssueID:       c.Params("issueId"),
		CurrentStatus: req.CurrentStatus,
		NewStatus:     req.NewStatus,
		UserID:        c.Get(UserIDHeader),
		UserRoles:     ParseRoles(c.Get(UserRolesHeader)),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetAllowedTransitions(c fiber.Ctx) error {
	result, err := h.engine.Allowed(c.Context(), c.Params("issueId"), ParseRoles(c.Get(UserRolesHeader)))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ApplyTransition(c fiber.Ctx) error {
	var req ApplyTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.transitions.Apply(c.Context(), services.ApplyRequest{
		IssueID:        c.Params("issueId"),
		ExpectedStatus: req.ExpectedStatus,
		NewStatus:      req.NewStatus,
		UserID:         c.Get(UserIDHeader),
		UserRoles:      ParseRoles(c.Get(UserRolesHeader)),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}
