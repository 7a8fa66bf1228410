// Package cache keeps workflow definition snapshots close to the engine.
package cache

import (
	"context"

	"github.com/dukex/issueflow/pkg/models"
)

// SnapshotCache stores workflow definitions by workflow id.
type SnapshotCache interface {
	// Get reports false when the workflow is not cached.
	Get(ctx context.Context, workflowID string) (*models.WorkflowDefinition, bool, error)
	Set(ctx context.Context, definition *models.WorkflowDefinition) error
	Invalidate(ctx context.Context, workflowID string) error
	Close() error
}
