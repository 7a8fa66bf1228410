package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/issueflow/pkg/channels/gochannel"
	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/events"
	"github.com/dukex/issueflow/pkg/persistence/file"
	"github.com/dukex/issueflow/pkg/registry"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/dukex/issueflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, bus eventbus.EventBus) (*fiber.App, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	api := NewAPI(
		slog.Default(),
		store,
		registry.NewDefaultRegistry(slog.Default()),
		bus,
	)

	return api.App(), store.(*file.Persistence)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Issueflow API", string(body))
}

func TestAPI_HealthProbes(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, body := send(t, app, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "OK", string(body), path)
	}
}

func TestAPI_CORS_Headers(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/workflows", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, _ := send(t, app, req)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_ContentType_JSON(t *testing.T) {
	app, _ := setupTestApp(t, nil)

	resp, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/projects/project-1/workflows", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestAPI_PublishesLifecycleEvents(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan any, 4)
	require.NoError(t, bus.Handle(events.WorkflowCreatedEvent, func(_ context.Context, event eventbus.Event) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Handle(events.IssueTransitionedEvent, func(_ context.Context, event eventbus.Event) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	app, store := setupTestApp(t, bus)

	body, err := json.Marshal(web.CreateWorkflowRequest{Name: "Bugs", ProjectID: "project-9", IsDefault: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := send(t, app, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case event := <-received:
		created, ok := event.(*events.WorkflowCreated)
		require.True(t, ok, "unexpected event %T", event)
		assert.Equal(t, "Bugs", created.Name)
		assert.Equal(t, "project-9", created.ProjectID)
	case <-time.After(5 * time.Second):
		t.Fatal("workflow.created was not delivered")
	}

	software := testutil.SoftwareWorkflow()
	require.NoError(t, testutil.SaveDefinition(t.Context(), store.WorkflowRepository(), software))

	issue := testutil.CreateTestIssue(software.Workflow.ProjectID, "Bug", "Open")
	require.NoError(t, store.IssueRepository().Save(t.Context(), issue))

	body, err = json.Marshal(web.ApplyTransitionRequest{NewStatus: "InProgress"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/issues/"+issue.ID+"/transitions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.UserRolesHeader, "Developer")

	resp, _ = send(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case event := <-received:
		transitioned, ok := event.(*events.IssueTransitioned)
		require.True(t, ok, "unexpected event %T", event)
		assert.Equal(t, issue.ID, transitioned.IssueID)
		assert.Equal(t, "InProgress", transitioned.ToStatus)
	case <-time.After(5 * time.Second):
		t.Fatal("issue.transitioned was not delivered")
	}
}
