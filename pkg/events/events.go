// Package events defines event types and structures for live workflow state
// notifications and mission lifecycle events.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the event bus topic all mission lifecycle events are published on.
const Topic = "runops.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Live state channel events.
	StateUpdateEvent    EventType = "stateUpdate"
	VariableUpdateEvent EventType = "variableUpdate"

	// Mission lifecycle events.
	MissionStartedEvent   EventType = "mission.started"
	MissionCompletedEvent EventType = "mission.completed"
	MissionFailedEvent    EventType = "mission.failed"
)

// Event is implemented by every event kind in this package.
type Event interface {
	GetType() EventType
}

// StateUpdate carries a full, freshly computed snapshot of workflow state.
// It is JSON-serializable without reference to any transport session.
type StateUpdate struct {
	Type             EventType      `json:"type"`
	WorkflowID       string         `json:"workflow_id"`
	FormattedDisplay string         `json:"formattedDisplay"`
	RawState         map[string]any `json:"rawState"`
	Timestamp        time.Time      `json:"timestamp"`
}

func NewStateUpdate(workflowID, formatted string, raw map[string]any) *StateUpdate {
	return &StateUpdate{
		Type:             StateUpdateEvent,
		WorkflowID:       workflowID,
		FormattedDisplay: formatted,
		RawState:         raw,
		Timestamp:        time.Now().UTC(),
	}
}

func (e StateUpdate) GetType() EventType {
	return StateUpdateEvent
}

// VariableUpdate notifies subscribers of a single key/value change.
type VariableUpdate struct {
	Type        EventType `json:"type"`
	WorkflowID  string    `json:"workflow_id"`
	VariableKey string    `json:"variableKey"`
	NodeAlias   string    `json:"nodeAlias"`
	Value       any       `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewVariableUpdate(workflowID, key, nodeAlias string, value any) *VariableUpdate {
	return &VariableUpdate{
		Type:        VariableUpdateEvent,
		WorkflowID:  workflowID,
		VariableKey: key,
		NodeAlias:   nodeAlias,
		Value:       value,
		Timestamp:   time.Now().UTC(),
	}
}

func (e VariableUpdate) GetType() EventType {
	return VariableUpdateEvent
}

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type MissionStarted struct {
	BaseEvent

	MissionID string `json:"mission_id"`
	Objective string `json:"objective"`
}

func (m MissionStarted) GetType() EventType {
	return MissionStartedEvent
}

type MissionCompleted struct {
	BaseEvent

	MissionID     string        `json:"mission_id"`
	Result        string        `json:"result,omitempty"`
	ToolsExecuted int           `json:"tools_executed"`
	Duration      time.Duration `json:"duration"`
}

func (m MissionCompleted) GetType() EventType {
	return MissionCompletedEvent
}

type MissionFailed struct {
	BaseEvent

	MissionID string        `json:"mission_id"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

func (m MissionFailed) GetType() EventType {
	return MissionFailedEvent
}
