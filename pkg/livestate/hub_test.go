package livestate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atypis/runops/pkg/events"
)

type fakeConn struct {
	writes  [][]byte
	failAll bool
}

func (c *fakeConn) Write(payload []byte) error {
	if c.failAll {
		return errors.New("connection closed")
	}

	c.writes = append(c.writes, payload)

	return nil
}

func (c *fakeConn) displays(t *testing.T) []string {
	t.Helper()

	displays := make([]string, 0, len(c.writes))

	for _, payload := range c.writes {
		var update events.StateUpdate

		require.NoError(t, json.Unmarshal(payload, &update))
		displays = append(displays, update.FormattedDisplay)
	}

	return displays
}

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError})))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestHubBuffersWhileNoSubscriber(t *testing.T) {
	hub := newTestHub()

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "first", nil)))
	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "second", nil)))

	conn := &fakeConn{}
	hub.Subscribe("wf-1", conn)

	assert.Equal(t, []string{"first", "second"}, conn.displays(t))
}

func TestHubReplaysBufferOnlyOnce(t *testing.T) {
	hub := newTestHub()

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "buffered", nil)))

	first := &fakeConn{}
	hub.Subscribe("wf-1", first)
	require.Len(t, first.writes, 1)

	second := &fakeConn{}
	hub.Subscribe("wf-1", second)

	assert.Empty(t, second.writes, "buffer must be cleared after first replay")
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub := newTestHub()

	first := &fakeConn{}
	second := &fakeConn{}
	hub.Subscribe("wf-1", first)
	hub.Subscribe("wf-1", second)

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "update", nil)))

	assert.Equal(t, []string{"update"}, first.displays(t))
	assert.Equal(t, []string{"update"}, second.displays(t))
}

func TestHubIsolatesWorkflows(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{}
	hub.Subscribe("wf-1", conn)

	require.NoError(t, hub.Publish("wf-2", events.NewStateUpdate("wf-2", "other", nil)))

	assert.Empty(t, conn.writes)
}

func TestHubPrunesDeadConnections(t *testing.T) {
	hub := newTestHub()

	dead := &fakeConn{failAll: true}
	alive := &fakeConn{}
	hub.Subscribe("wf-1", dead)
	hub.Subscribe("wf-1", alive)

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "first", nil)))
	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "second", nil)))

	assert.Equal(t, []string{"first", "second"}, alive.displays(t))
	assert.Equal(t, 1, hub.SubscriberCount("wf-1"))
}

func TestHubEvictsExpiredPendingUpdates(t *testing.T) {
	hub := newTestHub()

	current := time.Now().UTC()
	hub.now = func() time.Time { return current }

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "stale", nil)))

	current = current.Add(PendingUpdateTTL + time.Second)

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "fresh", nil)))

	conn := &fakeConn{}
	hub.Subscribe("wf-1", conn)

	assert.Equal(t, []string{"fresh"}, conn.displays(t))
}

func TestHubUnsubscribeRemovesConnection(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{}
	hub.Subscribe("wf-1", conn)
	hub.Unsubscribe("wf-1", conn, "client disconnect")

	require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", "after", nil)))

	assert.Empty(t, conn.writes)
	assert.Equal(t, 0, hub.SubscriberCount("wf-1"))
}

func TestHubPublishPreservesOrder(t *testing.T) {
	hub := newTestHub()

	conn := &fakeConn{}
	hub.Subscribe("wf-1", conn)

	for _, display := range []string{"a", "b", "c"} {
		require.NoError(t, hub.Publish("wf-1", events.NewStateUpdate("wf-1", display, nil)))
	}

	assert.Equal(t, []string{"a", "b", "c"}, conn.displays(t))
}
