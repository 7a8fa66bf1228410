package file

import (
	"testing"

	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueRepository_WorkflowContext(t *testing.T) {
	repo := NewPersistence(t.TempDir()).IssueRepository()

	issue := testutil.CreateTestIssue("project-1", "Bug", "Open")
	require.NoError(t, repo.Save(t.Context(), issue))

	wc, err := repo.WorkflowContext(t.Context(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, wc.IssueID)
	assert.Equal(t, "project-1", wc.ProjectID)
	assert.Equal(t, "Bug", wc.IssueType)
	assert.Equal(t, "Open", wc.CurrentStatus)

	_, err = repo.WorkflowContext(t.Context(), "missing")
	assert.True(t, persistence.IsIssueNotFound(err))
}

func TestIssueRepository_CompareAndSwapStatus(t *testing.T) {
	repo := NewPersistence(t.TempDir()).IssueRepository()

	issue := testutil.CreateTestIssue("project-1", "Bug", "Open")
	require.NoError(t, repo.Save(t.Context(), issue))

	require.NoError(t, repo.CompareAndSwapStatus(t.Context(), issue.ID, "Open", "InProgress"))

	err := repo.CompareAndSwapStatus(t.Context(), issue.ID, "Open", "Resolved")
	require.Error(t, err)
	assert.True(t, persistence.IsStatusConflict(err))

	got, err := repo.GetByID(t.Context(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "InProgress", got.Status)

	err = repo.CompareAndSwapStatus(t.Context(), "missing", "Open", "Closed")
	assert.True(t, persistence.IsIssueNotFound(err))
}

func TestIssueRepository_IssueTypeCounts(t *testing.T) {
	repo := NewPersistence(t.TempDir()).IssueRepository()

	counts, err := repo.IssueTypeCounts(t.Context(), "project-1")
	require.NoError(t, err)
	assert.Empty(t, counts)

	for _, issue := range []struct{ project, issueType string }{
		{"project-1", "Bug"},
		{"project-1", "Bug"},
		{"project-1", "Story"},
		{"project-2", "Bug"},
	} {
		require.NoError(t, repo.Save(t.Context(), testutil.CreateTestIssue(issue.project, issue.issueType, "Open")))
	}

	counts, err = repo.IssueTypeCounts(t.Context(), "project-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Bug": 2, "Story": 1}, counts)
}
