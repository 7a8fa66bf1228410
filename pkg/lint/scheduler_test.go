package lint_test

import (
	"log/slog"
	"testing"

	"github.com/dukex/issueflow/pkg/lint"
	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence/file"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunOnce(t *testing.T) {
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()

	require.NoError(t, testutil.SaveDefinition(t.Context(), repo, testutil.SoftwareWorkflow()))

	for _, workflow := range []*models.Workflow{
		testutil.CreateTestWorkflow(testutil.WithProject("project-2")),
		testutil.CreateTestWorkflow(testutil.WithProject("project-3"), testutil.Inactive()),
	} {
		broken := &models.WorkflowDefinition{
			Workflow: workflow,
			Steps:    []*models.WorkflowStep{testutil.CreateTestStep(workflow.ID, "Open")},
		}
		require.NoError(t, testutil.SaveDefinition(t.Context(), repo, broken))
	}

	scheduler := lint.NewScheduler(repo, slog.Default())

	broken, err := scheduler.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, broken)
}

func TestScheduler_Start(t *testing.T) {
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()
	scheduler := lint.NewScheduler(repo, slog.Default())

	require.ErrorIs(t, scheduler.Start(t.Context(), ""), lint.ErrEmptySchedule)
	require.Error(t, scheduler.Start(t.Context(), "every tuesday"))

	require.NoError(t, scheduler.Start(t.Context(), "@every 1h"))
	scheduler.Stop()
}
