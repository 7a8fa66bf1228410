package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository keeps one WorkflowDefinition document per workflow.
type WorkflowRepository struct {
	store *Persistence
}

// GetAll returns every workflow that has not been deleted, oldest first.
func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	definitions, err := wr.loadAll()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(definitions))
	for _, def := range definitions {
		workflows = append(workflows, def.Workflow)
	}

	return workflows, nil
}

// GetByProject returns the workflows of a project, oldest first.
func (wr *WorkflowRepository) GetByProject(ctx context.Context, projectID string) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.ProjectID == projectID {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	def, err := wr.load("GetByID", workflowID)
	if err != nil {
		return nil, err
	}

	return def.Workflow, nil
}

// Save creates or updates the workflow header, keeping its steps and transitions.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow id: %w", err)
		}

		workflow.ID = id.String()
	}

	def, err := wr.load("Save", workflow.ID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return err
	}

	if def == nil {
		def = &models.WorkflowDefinition{
			Steps:       make([]*models.WorkflowStep, 0),
			Transitions: make([]*models.WorkflowTransition, 0),
		}
	}

	others, err := wr.loadAll()
	if err != nil {
		return err
	}

	for _, other := range others {
		if workflow.Overlaps(other.Workflow) {
			return &persistence.WorkflowError{
				Op:         "Save",
				WorkflowID: workflow.ID,
				Message:    "overlaps workflow " + other.Workflow.ID,
				Err:        persistence.ErrWorkflowConflict,
			}
		}
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	def.Workflow = workflow

	return wr.store.writeJSON(workflowsDir, workflow.ID, def)
}

// Delete marks the workflow as deleted. Its document stays on disk.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	def, err := wr.load("Delete", id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	def.Workflow.DeletedAt = &now
	def.Workflow.UpdatedAt = now

	return wr.store.writeJSON(workflowsDir, id, def)
}

// SaveStep creates or replaces a step of its workflow.
func (wr *WorkflowRepository) SaveStep(_ context.Context, step *models.WorkflowStep) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	def, err := wr.load("SaveStep", step.WorkflowID)
	if err != nil {
		return err
	}

	if step.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate step id: %w", err)
		}

		step.ID = id.String()
	}

	for _, existing := range def.Steps {
		if existing.ID != step.ID && existing.Status == step.Status {
			return &persistence.WorkflowError{
				Op:         "SaveStep",
				WorkflowID: step.WorkflowID,
				Message:    fmt.Sprintf("status %q", step.Status),
				Err:        persistence.ErrStepConflict,
			}
		}
	}

	index := slices.IndexFunc(def.Steps, func(s *models.WorkflowStep) bool { return s.ID == step.ID })
	if index >= 0 {
		def.Steps[index] = step
	} else {
		def.Steps = append(def.Steps, step)
	}

	def.Workflow.UpdatedAt = time.Now().UTC()

	return wr.store.writeJSON(workflowsDir, step.WorkflowID, def)
}

// GetSteps returns the steps of a workflow in insertion order.
func (wr *WorkflowRepository) GetSteps(_ context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	def, err := wr.load("GetSteps", workflowID)
	if err != nil {
		return nil, err
	}

	return def.Steps, nil
}

// SaveTransition creates or replaces a transition of its workflow.
func (wr *WorkflowRepository) SaveTransition(_ context.Context, transition *models.WorkflowTransition) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	def, err := wr.load("SaveTransition", transition.WorkflowID)
	if err != nil {
		return err
	}

	if transition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transition id: %w", err)
		}

		transition.ID = id.String()
	}

	index := slices.IndexFunc(def.Transitions, func(t *models.WorkflowTransition) bool { return t.ID == transition.ID })
	if index >= 0 {
		def.Transitions[index] = transition
	} else {
		def.Transitions = append(def.Transitions, transition)
	}

	def.Workflow.UpdatedAt = time.Now().UTC()

	return wr.store.writeJSON(workflowsDir, transition.WorkflowID, def)
}

// GetTransitions returns the transitions of a workflow in insertion order.
func (wr *WorkflowRepository) GetTransitions(_ context.Context, workflowID string) ([]*models.WorkflowTransition, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	def, err := wr.load("GetTransitions", workflowID)
	if err != nil {
		return nil, err
	}

	return def.Transitions, nil
}

// GetDefinition reads the whole workflow document. A single file read is
// already a consistent snapshot.
func (wr *WorkflowRepository) GetDefinition(_ context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	return wr.load("GetDefinition", workflowID)
}

// load reads a workflow document, hiding deleted workflows.
func (wr *WorkflowRepository) load(op, workflowID string) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition

	err := wr.store.readJSON(workflowsDir, workflowID, &def)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewWorkflowError(op, workflowID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	if def.Workflow == nil || def.Workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError(op, workflowID, persistence.ErrWorkflowNotFound)
	}

	if def.Steps == nil {
		def.Steps = make([]*models.WorkflowStep, 0)
	}

	if def.Transitions == nil {
		def.Transitions = make([]*models.WorkflowTransition, 0)
	}

	return &def, nil
}

func (wr *WorkflowRepository) loadAll() ([]*models.WorkflowDefinition, error) {
	ids, err := wr.store.ids(workflowsDir)
	if err != nil {
		return nil, err
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		def, err := wr.load("GetAll", id)
		if persistence.IsWorkflowNotFound(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		definitions = append(definitions, def)
	}

	slices.SortFunc(definitions, func(a, b *models.WorkflowDefinition) int {
		if c := a.Workflow.CreatedAt.Compare(b.Workflow.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.Workflow.ID, b.Workflow.ID)
	})

	return definitions, nil
}
