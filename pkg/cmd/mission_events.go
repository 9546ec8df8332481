package cmd

import (
	"context"
	"fmt"

	"github.com/atypis/runops/pkg/eventbus"
	"github.com/atypis/runops/pkg/events"
	"github.com/atypis/runops/pkg/livestate"
)

// RegisterMissionEventForwarding relays mission lifecycle events from the
// bus onto the live state hub, so channel subscribers observe mission
// progress alongside state and variable updates.
func RegisterMissionEventForwarding(bus eventbus.EventBus, hub *livestate.Hub) error {
	forward := func(_ context.Context, event any) error {
		switch e := event.(type) {
		case *events.MissionStarted:
			return hub.Publish(e.WorkflowID, e)
		case *events.MissionCompleted:
			return hub.Publish(e.WorkflowID, e)
		case *events.MissionFailed:
			return hub.Publish(e.WorkflowID, e)
		default:
			return fmt.Errorf("unexpected mission event payload %T", event)
		}
	}

	for _, eventType := range []events.EventType{
		events.MissionStartedEvent,
		events.MissionCompletedEvent,
		events.MissionFailedEvent,
	} {
		if err := bus.Handle(eventType, forward); err != nil {
			return err
		}
	}

	return nil
}
