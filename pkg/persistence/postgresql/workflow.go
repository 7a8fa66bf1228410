package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/google/uuid"
)

const workflowColumns = `
	id
  , name
  , description
  , project_id
  , issue_type
  , is_default
  , is_active
  , created_at
  , updated_at
  , deleted_at
`

// queryer is the read surface shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ persistence.WorkflowRepository = (*WorkflowRepository)(nil)

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns every workflow that has not been deleted, oldest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		ORDER BY created_at, id
	`

	return r.queryWorkflows(ctx, query)
}

// GetByProject returns the workflows of a project, oldest first.
func (r *WorkflowRepository) GetByProject(ctx context.Context, projectID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
	`

	return r.queryWorkflows(ctx, query, projectID)
}

// GetByID returns a workflow that has not been deleted.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.getByID(ctx, r.db, "GetByID", id)
}

// Save inserts or updates the workflow header.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	query := `
		INSERT INTO workflows (id, name, description, project_id, issue_type,
is_default, is_active, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			project_id = EXCLUDED.project_id,
			issue_type = EXCLUDED.issue_type,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.ProjectID,
		workflow.IssueType,
		workflow.IsDefault,
		workflow.IsActive,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		return &persistence.WorkflowError{
			Op:         "Save",
			WorkflowID: workflow.ID,
			Message:    "violates " + constraint,
			Err:        persistence.ErrWorkflowConflict,
		}
	}

	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// Delete soft deletes a workflow by setting its deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// SaveStep inserts or updates a step. The status label is unique per workflow.
func (r *WorkflowRepository) SaveStep(ctx context.Context, step *models.WorkflowStep) error {
	if _, err := r.getByID(ctx, r.db, "SaveStep", step.WorkflowID); err != nil {
		return err
	}

	if step.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step ID: %w", err)
		}

		step.ID = id.String()
	}

	propertiesJSON, err := json.Marshal(step.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal step properties: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (id, workflow_id, name, status, step_order, is_initial, is_final, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			step_order = EXCLUDED.step_order,
			is_initial = EXCLUDED.is_initial,
			is_final = EXCLUDED.is_final,
			properties = EXCLUDED.properties
	`

	_, err = r.db.ExecContext(ctx, query,
		step.ID,
		step.WorkflowID,
		step.Name,
		step.Status,
		step.Order,
		step.IsInitial,
		step.IsFinal,
		propertiesJSON,
	)
	if _, ok := uniqueConstraint(err); ok {
		return &persistence.WorkflowError{
			Op:         "SaveStep",
			WorkflowID: step.WorkflowID,
			Message:    fmt.Sprintf("status %q", step.Status),
			Err:        persistence.ErrStepConflict,
		}
	}

	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}

	return nil
}

// GetSteps returns the steps of a workflow in insertion order.
func (r *WorkflowRepository) GetSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	if _, err := r.getByID(ctx, r.db, "GetSteps", workflowID); err != nil {
		return nil, err
	}

	return r.loadSteps(ctx, r.db, workflowID)
}

// SaveTransition inserts or updates a transition.
func (r *WorkflowRepository) SaveTransition(ctx context.Context, transition *models.WorkflowTransition) error {
	if _, err := r.getByID(ctx, r.db, "SaveTransition", transition.WorkflowID); err != nil {
		return err
	}

	if transition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition ID: %w", err)
		}

		transition.ID = id.String()
	}

	columns, err := marshalTransitionBags(transition)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_transitions (id, workflow_id, from_step_id, to_step_id, name, kind,
conditions, validators, post_functions, required_roles, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			from_step_id = EXCLUDED.from_step_id,
			to_step_id = EXCLUDED.to_step_id,
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			conditions = EXCLUDED.conditions,
			validators = EXCLUDED.validators,
			post_functions = EXCLUDED.post_functions,
			required_roles = EXCLUDED.required_roles,
			properties = EXCLUDED.properties
	`

	_, err = r.db.ExecContext(ctx, query,
		transition.ID,
		transition.WorkflowID,
		transition.FromStepID,
		transition.ToStepID,
		transition.Name,
		transition.Kind,
		columns[0],
		columns[1],
		columns[2],
		columns[3],
		columns[4],
	)
	if err != nil {
		return fmt.Errorf("failed to save transition: %w", err)
	}

	return nil
}

// GetTransitions returns the transitions of a workflow in insertion order.
func (r *WorkflowRepository) GetTransitions(ctx context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	if _, err := r.getByID(ctx, r.db, "GetTransitions", workflowID); err != nil {
		return nil, err
	}

	return r.loadTransitions(ctx, r.db, workflowID)
}

// GetDefinition reads the workflow, its steps and its transitions inside one
// read-only repeatable-read transaction, so concurrent edits are either fully
// visible or not at all.
func (r *WorkflowRepository) GetDefinition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	workflow, err := r.getByID(ctx, tx, "GetDefinition", workflowID)
	if err != nil {
		return nil, err
	}

	steps, err := r.loadSteps(ctx, tx, workflowID)
	if err != nil {
		return nil, err
	}

	transitions, err := r.loadTransitions(ctx, tx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return &models.WorkflowDefinition{
		Workflow:    workflow,
		Steps:       steps,
		Transitions: transitions,
	}, nil
}

func (r *WorkflowRepository) getByID(ctx context.Context, q queryer, op, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := scanWorkflow(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, q queryer, workflowID string) ([]*models.WorkflowStep, error) {
	query := `
		SELECT id, workflow_id, name, status, step_order, is_initial, is_final, properties
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	steps := make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step           models.WorkflowStep
			propertiesJSON []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.Name,
			&step.Status,
			&step.Order,
			&step.IsInitial,
			&step.IsFinal,
			&propertiesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if err := json.Unmarshal(propertiesJSON, &step.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step properties: %w", err)
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func (r *WorkflowRepository) loadTransitions(ctx context.Context, q queryer, workflowID string) ([]*models.WorkflowTransition, error) {
	query := `
		SELECT id, workflow_id, from_step_id, to_step_id, name, kind,
			conditions, validators, post_functions, required_roles, properties
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	transitions := make([]*models.WorkflowTransition, 0)

	for rows.Next() {
		var (
			transition models.WorkflowTransition
			bags       [5][]byte
		)

		err := rows.Scan(
			&transition.ID,
			&transition.WorkflowID,
			&transition.FromStepID,
			&transition.ToStepID,
			&transition.Name,
			&transition.Kind,
			&bags[0],
			&bags[1],
			&bags[2],
			&bags[3],
			&bags[4],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		targets := []any{
			&transition.Conditions,
			&transition.Validators,
			&transition.PostFunctions,
			&transition.RequiredRoles,
			&transition.Properties,
		}

		for i, target := range targets {
			if err := json.Unmarshal(bags[i], target); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transition %s: %w", transition.ID, err)
			}
		}

		transitions = append(transitions, &transition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

// marshalTransitionBags encodes the JSONB columns of a transition in column order.
func marshalTransitionBags(transition *models.WorkflowTransition) ([5][]byte, error) {
	var columns [5][]byte

	values := []any{
		transition.Conditions,
		transition.Validators,
		transition.PostFunctions,
		transition.RequiredRoles,
		transition.Properties,
	}

	for i, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return columns, fmt.Errorf("failed to marshal transition %s: %w", transition.ID, err)
		}

		columns[i] = data
	}

	return columns, nil
}

func scanWorkflow(scanner rowScanner) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.ProjectID,
		&workflow.IssueType,
		&workflow.IsDefault,
		&workflow.IsActive,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
