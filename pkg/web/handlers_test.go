package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/persistence/file"
	"github.com/dukex/issueflow/pkg/registry"
	"github.com/dukex/issueflow/pkg/services"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/dukex/issueflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app         *fiber.App
	persistence persistence.Persistence
	software    *models.WorkflowDefinition
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	reg := registry.NewDefaultRegistry(slog.Default())

	engine := services.NewEngine(store.WorkflowRepository(), store.IssueRepository(), reg, slog.Default())
	handlers := web.NewAPIHandlers(
		services.NewDefinitions(store, nil, slog.Default()),
		engine,
		services.NewIssueTransitions(engine, store.IssueRepository(), reg, nil, slog.Default()),
		services.NewValidator(),
		reg,
	)

	software := testutil.SoftwareWorkflow()
	require.NoError(t, testutil.SaveDefinition(t.Context(), store.WorkflowRepository(), software))

	app := fiber.New()
	handlers.Register(app)

	return &testApp{app: app, persistence: store, software: software}
}

func (a *testApp) issue(t *testing.T, status string) *models.Issue {
	t.Helper()

	issue := testutil.CreateTestIssue(a.software.Workflow.ProjectID, "Bug", status)
	require.NoError(t, a.persistence.IssueRepository().Save(t.Context(), issue))

	return issue
}

func (a *testApp) do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(data, &value), string(data))

	return value
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:      "Bug Workflow",
				ProjectID: "project-1",
				IssueType: "Bug",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing project",
			requestBody:    web.CreateWorkflowRequest{Name: "Bug Workflow"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "second default of the project",
			requestBody: web.CreateWorkflowRequest{
				Name:      "Another default",
				ProjectID: "project-1",
				IsDefault: true,
			},
			expectedStatus: http.StatusConflict,
			expectedType:   "conflict",
		},
		{
			name: "default bound to an issue type",
			requestBody: web.CreateWorkflowRequest{
				Name:      "Typed default",
				ProjectID: "project-2",
				IssueType: "Bug",
				IsDefault: true,
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_definition",
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := setupTestApp(t)

			status, body := a.do(t, http.MethodPost, "/workflows", tt.requestBody)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				problem := decode[map[string]any](t, body)
				assert.Equal(t, tt.expectedType, problem["type"])

				return
			}

			workflow := decode[models.Workflow](t, body)
			assert.NotEmpty(t, workflow.ID)
			assert.Equal(t, "Bug", workflow.IssueType)
			assert.True(t, workflow.IsActive)
		})
	}
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	a := setupTestApp(t)
	id := a.software.Workflow.ID

	status, body := a.do(t, http.MethodGet, "/projects/project-1/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Workflow](t, body), 1)

	status, body = a.do(t, http.MethodPatch, "/workflows/"+id, map[string]any{"name": "Renamed", "is_active": false})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Renamed", decode[models.Workflow](t, body).Name)

	status, _ = a.do(t, http.MethodDelete, "/workflows/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = a.do(t, http.MethodGet, "/workflows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "workflow_not_found", decode[map[string]any](t, body)["type"])
}

func TestAPIHandlers_DeleteWorkflowInUse(t *testing.T) {
	a := setupTestApp(t)
	a.issue(t, "Open")

	status, body := a.do(t, http.MethodDelete, "/workflows/"+a.software.Workflow.ID, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, decode[map[string]any](t, body)["detail"], "deactivate it instead")
}

func TestAPIHandlers_Steps(t *testing.T) {
	a := setupTestApp(t)
	path := "/workflows/" + a.software.Workflow.ID + "/steps"

	status, body := a.do(t, http.MethodPost, path, web.CreateStepRequest{Name: "Review", Status: "InReview", Order: 5})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.NotEmpty(t, decode[models.WorkflowStep](t, body).ID)

	status, body = a.do(t, http.MethodPost, path, web.CreateStepRequest{Name: "Again", Status: "Open", IsInitial: true})
	require.Equal(t, http.StatusBadRequest, status)

	problem := decode[struct {
		Type       string               `json:"type"`
		Violations []services.Violation `json:"violations"`
	}](t, body)
	assert.Equal(t, "invalid_definition", problem.Type)
	assert.Len(t, problem.Violations, 2)

	status, body = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.WorkflowStep](t, body), 5)

	status, _ = a.do(t, http.MethodPost, "/workflows/missing/steps", web.CreateStepRequest{Name: "x", Status: "x"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_Transitions(t *testing.T) {
	a := setupTestApp(t)
	path := "/workflows/" + a.software.Workflow.ID + "/transitions"
	resolved := testutil.StepByStatus(a.software, "Resolved")
	open := testutil.StepByStatus(a.software, "Open")

	status, body := a.do(t, http.MethodPost, path, web.CreateTransitionRequest{
		Name:          "Reject",
		FromStepID:    resolved.ID,
		ToStepID:      open.ID,
		RequiredRoles: []string{"Tester", "tester"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[models.WorkflowTransition](t, body)
	assert.Equal(t, models.TransitionKindGlobal, created.Kind)
	assert.Equal(t, []string{"Tester"}, created.RequiredRoles)

	status, body = a.do(t, http.MethodPost, path, web.CreateTransitionRequest{FromStepID: resolved.ID, ToStepID: "elsewhere"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "to_step_id")

	status, body = a.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.WorkflowTransition](t, body), 6)
}

func TestAPIHandlers_ValidateTransition(t *testing.T) {
	a := setupTestApp(t)
	issue := a.issue(t, "Open")
	path := "/issues/" + issue.ID + "/transitions/validate"

	tests := []struct {
		name      string
		request   web.ValidateTransitionRequest
		roles     string
		valid     bool
		errorText string
	}{
		{
			name:    "developer starts progress",
			request: web.ValidateTransitionRequest{NewStatus: "InProgress"},
			roles:   "Developer",
			valid:   true,
		},
		{
			name:    "role header is case insensitive and trimmed",
			request: web.ValidateTransitionRequest{NewStatus: "InProgress"},
			roles:   " viewer , tester ",
			valid:   true,
		},
		{
			name:      "no edge",
			request:   web.ValidateTransitionRequest{NewStatus: "Closed"},
			roles:     "Admin",
			errorText: "Transition from 'Open' to 'Closed' is not allowed",
		},
		{
			name:      "explicit current status",
			request:   web.ValidateTransitionRequest{CurrentStatus: "Resolved", NewStatus: "Closed"},
			roles:     "Developer",
			errorText: "User does not have required role for this transition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, http.MethodPost, path, tt.request, web.UserRolesHeader, tt.roles)
			require.Equal(t, http.StatusOK, status, string(body))

			result := decode[models.WorkflowValidationResult](t, body)
			assert.Equal(t, tt.valid, result.IsValid)

			if tt.errorText != "" {
				assert.Equal(t, []string{tt.errorText}, result.Errors)
			}
		})
	}

	status, _ := a.do(t, http.MethodPost, path, web.ValidateTransitionRequest{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_AllowedTransitions(t *testing.T) {
	a := setupTestApp(t)
	issue := a.issue(t, "InProgress")

	status, body := a.do(t, http.MethodGet, "/issues/"+issue.ID+"/transitions", nil, web.UserRolesHeader, "Developer")
	require.Equal(t, http.StatusOK, status)

	result := decode[models.AllowedTransitionsResult](t, body)
	assert.Equal(t, "InProgress", result.CurrentStatus)

	names := make([]string, 0, len(result.Transitions))
	for _, transition := range result.Transitions {
		names = append(names, transition.Name)
	}

	assert.ElementsMatch(t, []string{"Resolve Issue", "Stop Progress"}, names)

	status, body = a.do(t, http.MethodGet, "/issues/"+issue.ID+"/transitions", nil, web.UserRolesHeader, "Admin")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[models.AllowedTransitionsResult](t, body).Transitions)
}

func TestAPIHandlers_ApplyTransition(t *testing.T) {
	a := setupTestApp(t)
	issue := a.issue(t, "Open")
	path := "/issues/" + issue.ID + "/transitions"

	status, body := a.do(t, http.MethodPost, path, web.ApplyTransitionRequest{NewStatus: "Resolved"},
		web.UserRolesHeader, "Developer")
	require.Equal(t, http.StatusUnprocessableEntity, status)

	problem := decode[struct {
		Type   string                          `json:"type"`
		Result models.WorkflowValidationResult `json:"result"`
	}](t, body)
	assert.Equal(t, string(models.FailureTransitionNotAllowed), problem.Type)
	assert.Len(t, problem.Result.AllowedTransitions, 1)

	status, body = a.do(t, http.MethodPost, path, web.ApplyTransitionRequest{ExpectedStatus: "Open", NewStatus: "InProgress"},
		web.UserRolesHeader, "Developer", web.UserIDHeader, "user-1")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[models.WorkflowValidationResult](t, body).IsValid)

	stored, err := a.persistence.IssueRepository().GetByID(t.Context(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "InProgress", stored.Status)

	status, body = a.do(t, http.MethodGet, "/issues/"+issue.ID+"/workflow", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, a.software.Workflow.ID, decode[models.Workflow](t, body).ID)
}

func TestAPIHandlers_ApplyTransition_StaleStatus(t *testing.T) {
	a := setupTestApp(t)
	issue := a.issue(t, "InProgress")

	status, body := a.do(t, http.MethodPost, "/issues/"+issue.ID+"/transitions",
		web.ApplyTransitionRequest{ExpectedStatus: "Open", NewStatus: "InProgress"},
		web.UserRolesHeader, "Developer")

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "status_conflict", decode[map[string]any](t, body)["type"])
}

func TestAPIHandlers_IssueWithoutWorkflow(t *testing.T) {
	a := setupTestApp(t)

	issue := testutil.CreateTestIssue("project-without-workflows", "Bug", "Open")
	require.NoError(t, a.persistence.IssueRepository().Save(t.Context(), issue))

	status, _ := a.do(t, http.MethodGet, "/issues/"+issue.ID+"/workflow", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodGet, "/issues/unknown/workflow", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_ExportImportLint(t *testing.T) {
	a := setupTestApp(t)

	status, exported := a.do(t, http.MethodGet, "/workflows/"+a.software.Workflow.ID+"/export", nil)
	require.Equal(t, http.StatusOK, status)

	doc := decode[map[string]any](t, exported)
	doc["project_id"] = "project-2"

	status, body := a.do(t, http.MethodPost, "/workflows/import", doc)
	require.Equal(t, http.StatusCreated, status, string(body))

	imported := decode[models.WorkflowDefinition](t, body)
	assert.Equal(t, "project-2", imported.Workflow.ProjectID)
	assert.Len(t, imported.Steps, 4)
	assert.Len(t, imported.Transitions, 5)

	status, body = a.do(t, http.MethodGet, "/workflows/"+imported.Workflow.ID+"/lint", nil)
	require.Equal(t, http.StatusOK, status)

	report := decode[web.LintResponse](t, body)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Findings)

	status, body = a.do(t, http.MethodPost, "/workflows/import", `{"name": "w", "project_id": "p", "steps": []}`)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_document", decode[map[string]any](t, body)["type"])
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	a := setupTestApp(t)

	status, body := a.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	health := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health["checkers"], "registry")
}
