package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/persistence/postgresql"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"issues", "workflow_transitions", "workflow_steps", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("issueflow_test"),
			postgres.WithUsername("issueflow"),
			postgres.WithPassword("issueflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_steps", "workflow_transitions", "issues", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestWorkflowRepository_SaveAndGetByID(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) { w.ID = "" })

	require.NoError(t, repo.Save(ctx, workflow))
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	retrieved, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.Name, retrieved.Name)
	assert.Equal(t, workflow.ProjectID, retrieved.ProjectID)
	assert.Equal(t, workflow.IsDefault, retrieved.IsDefault)
	assert.Equal(t, workflow.IsActive, retrieved.IsActive)
	assert.WithinDuration(t, workflow.CreatedAt, retrieved.CreatedAt, time.Millisecond)

	_, err = repo.GetByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_UpdateWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))

	workflow.Name = "Renamed"
	workflow.IsActive = false
	require.NoError(t, repo.Save(ctx, workflow))

	retrieved, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", retrieved.Name)
	assert.False(t, retrieved.IsActive)
}

func TestWorkflowRepository_DefinitionRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	def := testutil.SoftwareWorkflow()
	testutil.TransitionByName(def, "Close Issue").Properties = models.Properties{"screen": "resolution"}
	testutil.StepByStatus(def, "Open").Properties = models.Properties{"color": "blue"}

	conditional := testutil.TransitionByName(def, "Reopen Issue")
	conditional.Kind = models.TransitionKindConditional
	conditional.Conditions = []models.ExtensionRef{{Name: "simple", Config: models.Properties{"expression": true}}}
	conditional.PostFunctions = []models.ExtensionRef{{Name: "notify"}}

	require.NoError(t, testutil.SaveDefinition(ctx, repo, def))

	got, err := repo.GetDefinition(ctx, def.Workflow.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, len(def.Steps))
	require.Len(t, got.Transitions, len(def.Transitions))

	for i, step := range def.Steps {
		assert.Equal(t, step.ID, got.Steps[i].ID)
		assert.Equal(t, step.Status, got.Steps[i].Status)
		assert.Equal(t, step.Order, got.Steps[i].Order)
		assert.Equal(t, step.IsInitial, got.Steps[i].IsInitial)
		assert.Equal(t, step.IsFinal, got.Steps[i].IsFinal)
	}

	assert.Equal(t, "blue", got.Steps[0].Properties["color"])

	for i, transition := range def.Transitions {
		assert.Equal(t, transition.ID, got.Transitions[i].ID)
		assert.Equal(t, transition.FromStepID, got.Transitions[i].FromStepID)
		assert.Equal(t, transition.ToStepID, got.Transitions[i].ToStepID)
		assert.Equal(t, transition.Kind, got.Transitions[i].Kind)
		assert.Equal(t, transition.RequiredRoles, got.Transitions[i].RequiredRoles)
	}

	reopen := testutil.TransitionByName(got, "Reopen Issue")
	require.Len(t, reopen.Conditions, 1)
	assert.Equal(t, "simple", reopen.Conditions[0].Name)
	assert.Equal(t, true, reopen.Conditions[0].Config["expression"])
	assert.Equal(t, "notify", reopen.PostFunctions[0].Name)
	assert.Equal(t, "resolution", testutil.TransitionByName(got, "Close Issue").Properties["screen"])

	_, err = models.NewGraph(got)
	assert.NoError(t, err)
}

func TestWorkflowRepository_StepStatusUnique(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))
	require.NoError(t, repo.SaveStep(ctx, testutil.CreateTestStep(workflow.ID, "Open")))

	err := repo.SaveStep(ctx, testutil.CreateTestStep(workflow.ID, "Open"))
	require.Error(t, err)
	assert.True(t, persistence.IsStepConflict(err))

	err = repo.SaveStep(ctx, testutil.CreateTestStep(uuid.NewString(), "Open"))
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_UniqueLiveWorkflows(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, testutil.CreateTestWorkflow()))

	err := repo.Save(ctx, testutil.CreateTestWorkflow())
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowConflict(err))

	bug := testutil.CreateTestWorkflow(testutil.WithIssueType("Bug"))
	require.NoError(t, repo.Save(ctx, bug))

	err = repo.Save(ctx, testutil.CreateTestWorkflow(testutil.WithIssueType("Bug")))
	assert.True(t, persistence.IsWorkflowConflict(err))

	// Retired workflows leave the slot free.
	require.NoError(t, repo.Save(ctx, testutil.CreateTestWorkflow(testutil.WithIssueType("Story"), testutil.Inactive())))
	require.NoError(t, repo.Save(ctx, testutil.CreateTestWorkflow(testutil.WithIssueType("Story"))))

	require.NoError(t, repo.Delete(ctx, bug.ID))
	require.NoError(t, repo.Save(ctx, testutil.CreateTestWorkflow(testutil.WithIssueType("Bug"))))
}

func TestWorkflowRepository_SoftDelete(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	repo := p.WorkflowRepository()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Save(ctx, workflow))
	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err := repo.GetByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	workflows, err := repo.GetByProject(ctx, workflow.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, workflows)

	err = repo.Delete(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var deletedAt sql.NullTime

	err = db.QueryRowContext(ctx, "SELECT deleted_at FROM workflows WHERE id = $1", workflow.ID).Scan(&deletedAt)
	require.NoError(t, err)
	assert.True(t, deletedAt.Valid)
}

func TestIssueRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.IssueRepository()

	bug := testutil.CreateTestIssue("project-1", "Bug", "Open")
	require.NoError(t, repo.Save(ctx, bug))
	require.NoError(t, repo.Save(ctx, testutil.CreateTestIssue("project-1", "Bug", "Closed")))
	require.NoError(t, repo.Save(ctx, testutil.CreateTestIssue("project-1", "Story", "Open")))
	require.NoError(t, repo.Save(ctx, testutil.CreateTestIssue("project-2", "Bug", "Open")))

	wc, err := repo.WorkflowContext(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.IssueWorkflowContext{
		IssueID:       bug.ID,
		ProjectID:     "project-1",
		IssueType:     "Bug",
		CurrentStatus: "Open",
	}, wc)

	counts, err := repo.IssueTypeCounts(ctx, "project-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Bug": 2, "Story": 1}, counts)

	require.NoError(t, repo.CompareAndSwapStatus(ctx, bug.ID, "Open", "InProgress"))

	err = repo.CompareAndSwapStatus(ctx, bug.ID, "Open", "Resolved")
	assert.True(t, persistence.IsStatusConflict(err))

	err = repo.CompareAndSwapStatus(ctx, "missing", "Open", "Resolved")
	assert.True(t, persistence.IsIssueNotFound(err))

	got, err := repo.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, "InProgress", got.Status)
}
