package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/events"
	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/registry"
)

// DefaultPostFunctionTimeout bounds each post-function run.
const DefaultPostFunctionTimeout = 30 * time.Second

// ApplyRequest asks to move an issue to NewStatus. An empty ExpectedStatus
// means the status currently stored for the issue.
type ApplyRequest struct {
	IssueID        string   `json:"issue_id"        validate:"required"`
	ExpectedStatus string   `json:"expected_status"`
	NewStatus      string   `json:"new_status"      validate:"required"`
	UserID         string   `json:"user_id"`
	UserRoles      []string `json:"user_roles"`
}

// IssueTransitions applies validated transitions to issues: the status is
// written with a compare-and-swap, an issue.transitioned event is published
// and the transition's post-functions are fired in the background.
type IssueTransitions struct {
	engine    *Engine
	issues    persistence.IssueRepository
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	postFunctionTimeout time.Duration
	running             sync.WaitGroup
}

func NewIssueTransitions(
	engine *Engine,
	issues persistence.IssueRepository,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *IssueTransitions {
	return &IssueTransitions{
		engine:              engine,
		issues:              issues,
		registry:            reg,
		publisher:           publisher,
		logger:              logger,
		postFunctionTimeout: DefaultPostFunctionTimeout,
	}
}

// SetPostFunctionTimeout changes the bound of each post-function run.
func (s *IssueTransitions) SetPostFunctionTimeout(timeout time.Duration) {
	s.postFunctionTimeout = timeout
}

// Apply validates the request and, when accepted, moves the issue. A
// rejection is returned as a *TransitionError next to the result; an issue
// changed by someone else in the meantime yields ErrStatusConflict.
func (s *IssueTransitions) Apply(ctx context.Context, req ApplyRequest) (*models.WorkflowValidationResult, error) {
	eval, err := s.engine.check(ctx, ValidateRequest{
		IssueID:       req.IssueID,
		CurrentStatus: req.ExpectedStatus,
		NewStatus:     req.NewStatus,
		UserID:        req.UserID,
		UserRoles:     req.UserRoles,
	})
	if err != nil {
		return nil, err
	}

	if err := ResultError(eval.result); err != nil {
		return eval.result, err
	}

	tc := eval.tc
	if err := s.issues.CompareAndSwapStatus(ctx, req.IssueID, tc.From.Status, tc.To.Status); err != nil {
		return eval.result, fmt.Errorf("failed to apply transition %s: %w", eval.transition.Name, err)
	}

	s.logger.InfoContext(ctx, "Issue transitioned",
		"issue_id", req.IssueID,
		"workflow_id", tc.Workflow.ID,
		"from", tc.From.Status,
		"to", tc.To.Status,
		"user_id", req.UserID,
	)

	if s.publisher != nil {
		event := events.IssueTransitioned{
			BaseEvent:    events.NewBaseEvent(events.IssueTransitionedEvent, tc.Workflow.ID, tc.Workflow.ProjectID),
			IssueID:      req.IssueID,
			TransitionID: eval.transition.ID,
			FromStatus:   tc.From.Status,
			ToStatus:     tc.To.Status,
			UserID:       req.UserID,
		}

		if err := s.publisher.Publish(ctx, req.IssueID, event); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish event",
				"event_type", event.GetType(),
				"issue_id", req.IssueID,
				"error", err,
			)
		}
	}

	s.firePostFunctions(ctx, tc)

	return eval.result, nil
}

// firePostFunctions starts every post-function of the transition in its own
// goroutine. They outlive the request and report failures only to the log.
func (s *IssueTransitions) firePostFunctions(ctx context.Context, tc registry.TransitionContext) {
	detached := context.WithoutCancel(ctx)

	for _, ref := range tc.Transition.PostFunctions {
		var (
			fn registry.PostFunction
			ok bool
		)

		if s.registry != nil {
			fn, ok = s.registry.PostFunction(ref.Name)
		}

		if !ok {
			s.logger.WarnContext(ctx, "Post-function is not registered; skipped",
				"post_function", ref.Name,
				"transition_id", tc.Transition.ID,
			)

			continue
		}

		s.running.Add(1)

		go func(ref models.ExtensionRef) {
			defer s.running.Done()

			runCtx, cancel := context.WithTimeout(detached, s.postFunctionTimeout)
			defer cancel()

			if err := fn.Run(runCtx, tc, ref.Config); err != nil {
				s.logger.ErrorContext(runCtx, "Post-function failed",
					"post_function", ref.Name,
					"issue_id", tc.Issue.IssueID,
					"transition_id", tc.Transition.ID,
					"error", err,
				)
			}
		}(ref)
	}
}

// Wait blocks until every post-function started so far has returned.
func (s *IssueTransitions) Wait() {
	s.running.Wait()
}
