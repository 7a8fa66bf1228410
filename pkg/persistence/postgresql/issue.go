package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
)

// IssueRepository reads and updates the issue projection table.
type IssueRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ persistence.IssueRepository = (*IssueRepository)(nil)

// NewIssueRepository creates a new issue repository.
func NewIssueRepository(db *sql.DB, logger *slog.Logger) *IssueRepository {
	return &IssueRepository{db: db, logger: logger}
}

// Save inserts or replaces an issue.
func (r *IssueRepository) Save(ctx context.Context, issue *models.Issue) error {
	issue.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO issues (id, project_id, issue_type, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			issue_type = EXCLUDED.issue_type,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, issue.ID, issue.ProjectID, issue.IssueType, issue.Status, issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save issue: %w", err)
	}

	return nil
}

// GetByID retrieves an issue by its ID.
func (r *IssueRepository) GetByID(ctx context.Context, id string) (*models.Issue, error) {
	query := `SELECT id, project_id, issue_type, status, updated_at FROM issues WHERE id = $1`

	var issue models.Issue

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&issue.ID,
		&issue.ProjectID,
		&issue.IssueType,
		&issue.Status,
		&issue.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewIssueError("GetByID", id, persistence.ErrIssueNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}

	return &issue, nil
}

// WorkflowContext returns the workflow facts of an issue.
func (r *IssueRepository) WorkflowContext(ctx context.Context, issueID string) (*models.IssueWorkflowContext, error) {
	issue, err := r.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	return issue.WorkflowContext(), nil
}

// IssueTypeCounts counts the issues of a project per issue type.
func (r *IssueRepository) IssueTypeCounts(ctx context.Context, projectID string) (map[string]int, error) {
	query := `SELECT issue_type, COUNT(*) FROM issues WHERE project_id = $1 GROUP BY issue_type`

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	counts := make(map[string]int)

	for rows.Next() {
		var (
			issueType string
			count     int
		)

		if err := rows.Scan(&issueType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}

		counts[issueType] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating issue counts: %w", err)
	}

	return counts, nil
}

// CompareAndSwapStatus updates the status only when the stored one still equals expected.
func (r *IssueRepository) CompareAndSwapStatus(ctx context.Context, issueID, expected, next string) error {
	query := `UPDATE issues SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, issueID, expected, next)
	if err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 1 {
		return nil
	}

	// Tell a missing issue apart from a lost race.
	if _, err := r.GetByID(ctx, issueID); err != nil {
		return err
	}

	return persistence.NewIssueError("CompareAndSwapStatus", issueID, persistence.ErrStatusConflict)
}
