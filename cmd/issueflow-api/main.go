package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/issueflow/pkg/cmd"
	"github.com/dukex/issueflow/pkg/lint"
	"github.com/dukex/issueflow/pkg/log"
	"github.com/dukex/issueflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "issueflow-api",
		Usage:                 "Serve workflow definitions and issue transitions over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://<dir> or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers, used by the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL of the workflow snapshot cache; empty disables the cache",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Usage:   "Lifetime of a cached workflow snapshot",
				Value:   10 * time.Minute,
				Sources: cli.EnvVars("CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "lint-schedule",
				Usage:   "Cron expression for linting active workflows; empty disables it",
				Value:   "@daily",
				Sources: cli.EnvVars("LINT_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.FloatFlag{
				Name:    "otel-sample-ratio",
				Usage:   "Fraction of root traces to sample (1 samples everything)",
				Value:   1,
				Sources: cli.EnvVars("OTEL_SAMPLE_RATIO"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Issueflow API")

	if command.Bool("otel-enabled") {
		_, shutdown, err := otelhelper.NewTracer(ctx, "issueflow-api", command.Float("otel-sample-ratio"))
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	registry := cmd.NewRegistry(logger)

	store, err := cmd.NewPersistence(ctx, log.WithModule("persistence"), command.String("database-url"))
	if err != nil {
		return err
	}

	persistence, err := cmd.WithSnapshotCache(ctx, log.WithModule("cache"), store, command.String("redis-url"), command.Duration("cache-ttl"))
	if err != nil {
		_ = store.Close(ctx)

		return err
	}

	defer func() {
		if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), log.WithModule("eventbus"))
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	if err := auditEvents(ctx, eventBus, log.WithModule("audit")); err != nil {
		return err
	}

	scheduler := lint.NewScheduler(persistence.WorkflowRepository(), log.WithModule("lint"))

	switch err := scheduler.Start(ctx, command.String("lint-schedule")); {
	case errors.Is(err, lint.ErrEmptySchedule):
		logger.InfoContext(ctx, "Scheduled lint disabled")
	case err != nil:
		return err
	default:
		defer scheduler.Stop()
	}

	api := NewAPI(logger, persistence, registry, eventBus)

	if err := api.Start(ctx, command.Int("port")); err != nil {
		return fmt.Errorf("API server stopped: %w", err)
	}

	logger.Info("Issueflow API stopped")

	return nil
}
