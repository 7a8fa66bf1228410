package cache

import (
	"context"
	"log/slog"

	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
)

// Repository reads workflow definitions through a SnapshotCache. Every write
// invalidates the cached snapshot of the workflow it touches. Cache failures
// are logged and never fail the call.
type Repository struct {
	persistence.WorkflowRepository

	cache  SnapshotCache
	logger *slog.Logger
}

// NewRepository wraps repo so that definition reads go through cache.
func NewRepository(repo persistence.WorkflowRepository, cache SnapshotCache, logger *slog.Logger) *Repository {
	return &Repository{
		WorkflowRepository: repo,
		cache:              cache,
		logger:             logger,
	}
}

// GetDefinition serves the cached snapshot and fills the cache on a miss.
func (r *Repository) GetDefinition(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	def, ok, err := r.cache.Get(ctx, workflowID)
	if err != nil {
		r.logger.WarnContext(ctx, "Snapshot cache read failed", "workflow_id", workflowID, "error", err)
	}

	if ok {
		return def, nil
	}

	def, err = r.WorkflowRepository.GetDefinition(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, def); err != nil {
		r.logger.WarnContext(ctx, "Snapshot cache write failed", "workflow_id", workflowID, "error", err)
	}

	return def, nil
}

// Save stores the workflow and drops its cached snapshot.
func (r *Repository) Save(ctx context.Context, workflow *models.Workflow) error {
	if err := r.WorkflowRepository.Save(ctx, workflow); err != nil {
		return err
	}

	r.invalidate(ctx, workflow.ID)

	return nil
}

// Delete soft deletes the workflow and drops its cached snapshot.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.WorkflowRepository.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id)

	return nil
}

// SaveStep stores the step and drops the snapshot of its workflow.
func (r *Repository) SaveStep(ctx context.Context, step *models.WorkflowStep) error {
	if err := r.WorkflowRepository.SaveStep(ctx, step); err != nil {
		return err
	}

	r.invalidate(ctx, step.WorkflowID)

	return nil
}

// SaveTransition stores the transition and drops the snapshot of its workflow.
func (r *Repository) SaveTransition(ctx context.Context, transition *models.WorkflowTransition) error {
	if err := r.WorkflowRepository.SaveTransition(ctx, transition); err != nil {
		return err
	}

	r.invalidate(ctx, transition.WorkflowID)

	return nil
}

func (r *Repository) invalidate(ctx context.Context, workflowID string) {
	if err := r.cache.Invalidate(ctx, workflowID); err != nil {
		r.logger.WarnContext(ctx, "Snapshot cache invalidation failed", "workflow_id", workflowID, "error", err)
	}
}

// Persistence serves its workflow repository through the cache.
type Persistence struct {
	persistence.Persistence

	workflows *Repository
	cache     SnapshotCache
}

// NewPersistence wraps p so that its workflow repository reads through cache.
func NewPersistence(p persistence.Persistence, cache SnapshotCache, logger *slog.Logger) *Persistence {
	return &Persistence{
		Persistence: p,
		workflows:   NewRepository(p.WorkflowRepository(), cache, logger),
		cache:       cache,
	}
}

// WorkflowRepository returns the caching repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

// Close closes the cache, then the wrapped persistence.
func (p *Persistence) Close(ctx context.Context) error {
	if err := p.cache.Close(); err != nil {
		return err
	}

	return p.Persistence.Close(ctx)
}
