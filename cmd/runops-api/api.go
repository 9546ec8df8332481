// Package main provides the runops API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/persistence"
	"github.com/atypis/runops/pkg/variables"
	"github.com/atypis/runops/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	hub         *livestate.Hub
	missions    web.MissionEnqueuer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	hub *livestate.Hub,
	missions web.MissionEnqueuer,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		hub:         hub,
		missions:    missions,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	store := variables.NewStore(a.persistence, a.hub)
	handlers := web.NewAPIHandlers(store, a.hub, a.persistence, a.missions, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Runops API")
	})

	w := app.Group("/workflows")
	w.Get("/:id/variables", handlers.GetVariables)
	w.Get("/:id/variables/:key", handlers.GetVariable)
	w.Put("/:id/variables/:key", handlers.SetVariable)
	w.Delete("/:id/variables/:key", handlers.DeleteVariable)
	w.Get("/:id/display", handlers.GetDisplay)

	w.Post("/:id/records", handlers.CreateRecord)
	w.Get("/:id/records", handlers.QueryRecords)
	w.Get("/:id/records/:recordId", handlers.GetRecord)
	w.Patch("/:id/records/:recordId", handlers.UpdateRecord)
	w.Delete("/:id/records/:recordId", handlers.DeleteRecord)

	w.Post("/:id/nodes", handlers.SaveNode)
	w.Get("/:id/live", handlers.StreamLiveState)

	app.Post("/missions", handlers.CreateMission)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
