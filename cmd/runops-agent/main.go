// Package main provides the runops agent worker: it consumes missions from
// the queue and drives the browser through the reasoning control loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/atypis/runops/pkg/agent"
	"github.com/atypis/runops/pkg/browser"
	"github.com/atypis/runops/pkg/cmd"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/log"
	"github.com/atypis/runops/pkg/missions"
	"github.com/atypis/runops/pkg/reasoning"
	"github.com/atypis/runops/pkg/tools"
	"github.com/atypis/runops/pkg/variables"
)

func main() {
	command := &cli.Command{
		Name:                  "runops-agent",
		Usage:                 "Execute browser-automation missions from the queue",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the mission queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the mission queue",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key for the reasoning engine",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Base URL for OpenAI-compatible reasoning providers",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Reasoning model name",
				Value:   "gpt-4o",
				Sources: cli.EnvVars("RUNOPS_MODEL"),
			},
			&cli.BoolFlag{
				Name:    "headless",
				Usage:   "Run the browser headless",
				Value:   true,
				Sources: cli.EnvVars("HEADLESS"),
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

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("agent")
	logger.InfoContext(ctx, "Initializing Runops agent worker")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	engine, err := reasoning.NewOpenAIEngine(
		command.String("openai-api-key"),
		command.String("openai-base-url"),
		reasoning.WithModel(command.String("model")),
	)
	if err != nil {
		return err
	}

	driver := browser.NewPlaywrightDriver(command.Bool("headless"))
	if err := driver.Initialize(ctx); err != nil {
		return err
	}

	defer func() {
		if err := driver.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close browser", "error", err)
		}
	}()

	eventBus := cmd.NewEventBus(command.String("event-bus"), "runops-agent", logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	hub := livestate.NewHub(logger)
	store := variables.NewStore(persistence, hub)

	queue, err := missions.NewQueue(ctx,
		command.String("redis-addr"), command.String("redis-password"), 0, "")
	if err != nil {
		return err
	}

	queue.Start(ctx, func(ctx context.Context, mission agent.Mission) error {
		registry := newMissionRegistry(driver, store, mission)
		loop := agent.NewLoop(engine, registry, driver, store, hub, eventBus)

		result, err := loop.Run(ctx, mission)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Mission finished",
			"mission_id", mission.ID,
			"successful", result.Successful,
			"tools_executed", len(result.ExecutedTools))

		return nil
	})

	<-ctx.Done()
	logger.Info("Shutting down agent worker")

	return queue.Stop(context.Background())
}

// newMissionRegistry assembles the tool catalog for one mission, scoping the
// state tools to the mission's workflow.
func newMissionRegistry(driver browser.Driver, store *variables.Store, mission agent.Mission) *tools.Registry {
	registry := tools.NewRegistry()
	registry.MustRegister(
		&tools.OpenTabHandler{Driver: driver},
		&tools.CloseTabHandler{Driver: driver},
		&tools.SwitchTabHandler{Driver: driver},
		&tools.ListTabsHandler{Driver: driver},
		&tools.NavigateHandler{Driver: driver},
		&tools.ClickHandler{Driver: driver},
		&tools.TypeHandler{Driver: driver},
		&tools.WaitHandler{Driver: driver},
		&tools.ScreenshotHandler{Driver: driver},
		&tools.SetVariableHandler{WorkflowID: mission.WorkflowID, Store: store},
		&tools.GetVariableHandler{WorkflowID: mission.WorkflowID, Store: store},
		&tools.CreateRecordHandler{WorkflowID: mission.WorkflowID, Store: store},
		&tools.UpdateRecordHandler{WorkflowID: mission.WorkflowID, Store: store},
		&tools.QueryRecordsHandler{WorkflowID: mission.WorkflowID, Store: store},
	)

	return registry
}
