// Package agent implements the mission control loop: invoke the reasoning
// engine, dispatch requested tools, feed results back, repeat until the
// engine answers with no tool requests or the depth bound is hit.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atypis/runops/pkg/browser"
	"github.com/atypis/runops/pkg/eventbus"
	"github.com/atypis/runops/pkg/events"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/log"
	"github.com/atypis/runops/pkg/reasoning"
	"github.com/atypis/runops/pkg/tools"
	"github.com/atypis/runops/pkg/variables"
)

// DefaultMaxDepth bounds reasoning turns per mission when the mission does
// not set its own limit.
const DefaultMaxDepth = 10

// ErrDepthExceeded is returned when the engine keeps requesting tools past
// the configured maximum depth. Fatal for the invocation, never retried.
var ErrDepthExceeded = errors.New("maximum reasoning depth exceeded")

// Mission is one control-loop invocation.
type Mission struct {
	ID                 string `json:"id"`
	WorkflowID         string `json:"workflow_id"`
	Objective          string `json:"objective"`
	SystemInstructions string `json:"system_instructions"`

	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int `json:"max_depth,omitempty"`
}

// ExecutedTool is one dispatched tool call in mission order.
type ExecutedTool struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    tools.Result   `json:"result"`
	Depth     int            `json:"depth"`
}

// MissionResult aggregates a finished mission: the terminal free text, every
// executed tool across all depths in dispatch order, and token usage from
// the outermost engine turn. Per-turn usage is retained separately and is
// not summed into Usage, matching how the engine accounts per call.
type MissionResult struct {
	FinalText     string            `json:"final_text"`
	ExecutedTools []ExecutedTool    `json:"executed_tools"`
	Usage         reasoning.Usage   `json:"usage"`
	TurnUsage     []reasoning.Usage `json:"turn_usage"`
	Successful    bool              `json:"successful"`
	Depth         int               `json:"depth"`
}

// Loop orchestrates missions over the reasoning engine and tool registry.
type Loop struct {
	engine   reasoning.Engine
	registry *tools.Registry
	driver   browser.Driver
	store    *variables.Store
	hub      *livestate.Hub
	bus      eventbus.EventBus
	logger   *slog.Logger
}

// NewLoop wires the control loop. The event bus is optional; without one
// only live state channel notifications are emitted.
func NewLoop(
	engine reasoning.Engine,
	registry *tools.Registry,
	driver browser.Driver,
	store *variables.Store,
	hub *livestate.Hub,
	bus eventbus.EventBus,
) *Loop {
	return &Loop{
		engine:   engine,
		registry: registry,
		driver:   driver,
		store:    store,
		hub:      hub,
		bus:      bus,
		logger:   log.WithModule("agent"),
	}
}

// Run executes the mission to completion. Tool failures are fed back to the
// engine as results and never abort the loop; an engine transport failure or
// an exceeded depth bound is fatal and surfaced to the caller. The mission is
// reported unsuccessful when tools ran and every single one failed.
func (l *Loop) Run(ctx context.Context, mission Mission) (*MissionResult, error) {
	startedAt := time.Now()

	maxDepth := mission.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	l.publishMissionEvent(ctx, &events.MissionStarted{
		BaseEvent: events.NewBaseEvent(events.MissionStartedEvent, mission.WorkflowID),
		MissionID: mission.ID,
		Objective: mission.Objective,
	})

	result, err := l.run(ctx, mission, maxDepth)
	if err != nil {
		l.publishMissionEvent(ctx, &events.MissionFailed{
			BaseEvent: events.NewBaseEvent(events.MissionFailedEvent, mission.WorkflowID),
			MissionID: mission.ID,
			Error:     err.Error(),
			Duration:  time.Since(startedAt),
		})

		return nil, err
	}

	l.publishMissionEvent(ctx, &events.MissionCompleted{
		BaseEvent:     events.NewBaseEvent(events.MissionCompletedEvent, mission.WorkflowID),
		MissionID:     mission.ID,
		Result:        result.FinalText,
		ToolsExecuted: len(result.ExecutedTools),
		Duration:      time.Since(startedAt),
	})

	return result, nil
}

// run is the iterative state machine: each pass through the loop is one
// reasoning turn; tool requests extend the transcript and deepen by one.
func (l *Loop) run(ctx context.Context, mission Mission, maxDepth int) (*MissionResult, error) {
	transcript := []reasoning.Turn{{Role: reasoning.RoleUser, Content: mission.Objective}}
	catalog := l.registry.Catalog()
	result := &MissionResult{}

	for depth := 0; ; depth++ {
		if depth >= maxDepth {
			return nil, fmt.Errorf("mission %s aborted after %d turns: %w", mission.ID, depth, ErrDepthExceeded)
		}

		turn, err := l.engine.Invoke(ctx, mission.SystemInstructions, transcript, catalog)
		if err != nil {
			return nil, fmt.Errorf("reasoning engine call failed: %w", err)
		}

		if depth == 0 {
			result.Usage = turn.Usage
		}

		result.TurnUsage = append(result.TurnUsage, turn.Usage)
		result.Depth = depth

		if len(turn.ToolRequests) == 0 {
			result.FinalText = turn.FinalText

			break
		}

		transcript = append(transcript, reasoning.Turn{
			Role:      reasoning.RoleAssistant,
			Content:   turn.FinalText,
			ToolCalls: turn.ToolRequests,
		})

		// Dispatch order is the protocol contract: tool outputs are
		// appended back into the transcript in request order.
		for _, request := range turn.ToolRequests {
			toolResult := l.registry.Dispatch(ctx, request.Name, request.Arguments)

			result.ExecutedTools = append(result.ExecutedTools, ExecutedTool{
				Name:      request.Name,
				Arguments: request.Arguments,
				Result:    toolResult,
				Depth:     depth,
			})

			transcript = append(transcript, reasoning.Turn{
				Role:       reasoning.RoleTool,
				Content:    marshalResult(toolResult),
				ToolCallID: request.CallID,
			})
		}

		l.publishStateUpdate(ctx, mission.WorkflowID)
	}

	result.Successful = !allToolsFailed(result.ExecutedTools)

	log.ForMission("agent", mission.ID, mission.WorkflowID).Info("mission finished",
		"depth", result.Depth, "tools_executed", len(result.ExecutedTools),
		"successful", result.Successful)

	return result, nil
}

// publishStateUpdate emits a fresh full-state snapshot. The live browser
// driver is always queried first; the last-persisted variable state serves
// only as the fallback when the live query fails.
func (l *Loop) publishStateUpdate(ctx context.Context, workflowID string) {
	raw, err := l.driver.Snapshot(ctx)
	if err != nil {
		l.logger.Warn("live browser snapshot failed, falling back to persisted state",
			"workflow_id", workflowID, "error", err)

		fallback, formatted, storeErr := l.store.Snapshot(ctx, workflowID)
		if storeErr != nil {
			l.logger.Warn("persisted state snapshot failed, skipping state update",
				"workflow_id", workflowID, "error", storeErr)

			return
		}

		l.publishLive(workflowID, events.NewStateUpdate(workflowID, formatted, fallback))

		return
	}

	variablesRaw, formatted, storeErr := l.store.Snapshot(ctx, workflowID)
	if storeErr == nil {
		raw["variables"] = variablesRaw
	} else {
		formatted = fmt.Sprintf("active tab: %v", raw["activeTab"])
	}

	l.publishLive(workflowID, events.NewStateUpdate(workflowID, formatted, raw))
}

func (l *Loop) publishLive(workflowID string, event events.Event) {
	if err := l.hub.Publish(workflowID, event); err != nil {
		l.logger.Warn("failed to publish state update",
			"workflow_id", workflowID, "error", err)
	}
}

func (l *Loop) publishMissionEvent(ctx context.Context, event eventbus.Event) {
	if l.bus == nil {
		return
	}

	if err := l.bus.Publish(ctx, l.bus.GenerateID(), event); err != nil {
		l.logger.Warn("failed to publish mission event",
			"event_type", event.GetType(), "error", err)
	}
}

func marshalResult(result tools.Result) string {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}

	return string(payload)
}

func allToolsFailed(executed []ExecutedTool) bool {
	if len(executed) == 0 {
		return false
	}

	for _, tool := range executed {
		if tool.Result.Success {
			return false
		}
	}

	return true
}
