package lint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/issueflow/pkg/otelhelper"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrEmptySchedule is returned by Start when no cron expression is given.
var ErrEmptySchedule = errors.New("lint schedule is empty")

// Scheduler lints every active workflow on a cron schedule and logs what it finds.
type Scheduler struct {
	workflows persistence.WorkflowRepository
	logger    *slog.Logger
	tracer    trace.Tracer
	cron      *cron.Cron
}

func NewScheduler(workflows persistence.WorkflowRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		workflows: workflows,
		logger:    logger,
		tracer:    otel.Tracer("github.com/dukex/issueflow/pkg/lint"),
	}
}

// Start validates the standard five-field expression and starts the cron
// loop. Runs never overlap.
func (s *Scheduler) Start(ctx context.Context, expr string) error {
	if expr == "" {
		return ErrEmptySchedule
	}

	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid lint schedule: %w", err)
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := s.cron.AddFunc(expr, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled lint failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule lint: %w", err)
	}

	s.logger.InfoContext(ctx, "Lint scheduled", "schedule", expr, "entry_id", id)
	s.cron.Start()

	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce lints every live workflow and returns how many have errors. A
// workflow that cannot be read is logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	workflows, err := s.workflows.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list workflows: %w", err)
	}

	broken := 0

	for _, workflow := range workflows {
		if !workflow.Live() {
			continue
		}

		spanCtx, span := otelhelper.StartSpan(ctx, s.tracer, "lint.workflow",
			otelhelper.WorkflowAttributes(workflow)...)

		def, err := s.workflows.GetDefinition(spanCtx, workflow.ID)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()
			s.logger.WarnContext(spanCtx, "Failed to read workflow for lint", "workflow_id", workflow.ID, "error", err)

			continue
		}

		findings := Check(def)
		if HasErrors(findings) {
			broken++
		}

		for _, finding := range findings {
			level := slog.LevelWarn
			if finding.Severity == SeverityError {
				level = slog.LevelError
			}

			s.logger.Log(spanCtx, level, finding.Message,
				"workflow_id", workflow.ID,
				"project_id", workflow.ProjectID,
				"code", finding.Code,
				"step_id", finding.StepID,
				"transition_id", finding.TransitionID,
			)
		}

		span.SetAttributes(attribute.Int("issueflow.lint.findings", len(findings)))
		span.End()
	}

	s.logger.InfoContext(ctx, "Lint pass finished", "workflows", len(workflows), "with_errors", broken)

	return broken, nil
}
