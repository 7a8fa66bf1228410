package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
)

// IssueRepository keeps the issue projection as one JSON document per issue.
type IssueRepository struct {
	store *Persistence
}

// Save creates or replaces an issue.
func (ir *IssueRepository) Save(_ context.Context, issue *models.Issue) error {
	ir.store.mu.Lock()
	defer ir.store.mu.Unlock()

	issue.UpdatedAt = time.Now().UTC()

	return ir.store.writeJSON(issuesDir, issue.ID, issue)
}

// GetByID retrieves an issue by its ID.
func (ir *IssueRepository) GetByID(_ context.Context, id string) (*models.Issue, error) {
	ir.store.mu.RLock()
	defer ir.store.mu.RUnlock()

	return ir.load("GetByID", id)
}

// WorkflowContext returns the workflow facts of an issue.
func (ir *IssueRepository) WorkflowContext(ctx context.Context, issueID string) (*models.IssueWorkflowContext, error) {
	issue, err := ir.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	return issue.WorkflowContext(), nil
}

// IssueTypeCounts counts the issues of a project per issue type.
func (ir *IssueRepository) IssueTypeCounts(_ context.Context, projectID string) (map[string]int, error) {
	ir.store.mu.RLock()
	defer ir.store.mu.RUnlock()

	ids, err := ir.store.ids(issuesDir)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)

	for _, id := range ids {
		issue, err := ir.load("IssueTypeCounts", id)
		if err != nil {
			return nil, err
		}

		if issue.ProjectID == projectID {
			counts[issue.IssueType]++
		}
	}

	return counts, nil
}

// CompareAndSwapStatus moves the issue to next when its stored status is still expected.
func (ir *IssueRepository) CompareAndSwapStatus(_ context.Context, issueID, expected, next string) error {
	ir.store.mu.Lock()
	defer ir.store.mu.Unlock()

	issue, err := ir.load("CompareAndSwapStatus", issueID)
	if err != nil {
		return err
	}

	if issue.Status != expected {
		return persistence.NewIssueError("CompareAndSwapStatus", issueID, persistence.ErrStatusConflict)
	}

	issue.Status = next
	issue.UpdatedAt = time.Now().UTC()

	return ir.store.writeJSON(issuesDir, issueID, issue)
}

func (ir *IssueRepository) load(op, id string) (*models.Issue, error) {
	var issue models.Issue

	err := ir.store.readJSON(issuesDir, id, &issue)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewIssueError(op, id, persistence.ErrIssueNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", id, err)
	}

	return &issue, nil
}
