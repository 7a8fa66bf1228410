// Package main provides the issueflow API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/issueflow/pkg/eventbus"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/registry"
	"github.com/dukex/issueflow/pkg/services"
	"github.com/dukex/issueflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	transitions *services.IssueTransitions
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
	}
}

func (a *API) App() *fiber.App {
	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	workflows := a.persistence.WorkflowRepository()
	issues := a.persistence.IssueRepository()

	engine := services.NewEngine(workflows, issues, a.registry, a.logger)
	a.transitions = services.NewIssueTransitions(engine, issues, a.registry, publisher, a.logger)

	handlers := web.NewAPIHandlers(
		services.NewDefinitions(a.persistence, publisher, a.logger),
		engine,
		a.transitions,
		services.NewValidator(),
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Issueflow API")
	})

	handlers.Register(app)

	return app
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// waits for running post-functions.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	err := app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})

	a.transitions.Wait()

	return err
}
