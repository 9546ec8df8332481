// Package livestate fans out workflow state-change events to long-lived
// subscriber connections, buffering updates while no subscriber is attached
// and pruning dead connections transparently.
package livestate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atypis/runops/pkg/events"
)

// PendingUpdateTTL is how long a buffered update is retained while no
// subscriber is attached. Entries older than this are evicted on every
// access to the workflow's buffer.
const PendingUpdateTTL = 5 * time.Minute

// Connection is a writable, long-lived channel to one subscriber. Write
// failures mark the connection dead; it is removed before the next publish
// to the same workflow.
type Connection interface {
	Write(payload []byte) error
}

// UnsubscribeReasonWriteFailure is the reason recorded when a connection is
// pruned because a publish could not be written to it.
const UnsubscribeReasonWriteFailure = "write failure"

type subscriber struct {
	id         string
	conn       Connection
	attachedAt time.Time
	dead       bool
}

type pendingUpdate struct {
	payload    []byte
	bufferedAt time.Time
}

// entry owns one workflow's subscriber list and pending buffer. All
// mutations for a workflow are serialized on entry.mu; entries for
// different workflows do not contend.
type entry struct {
	mu      sync.Mutex
	subs    []*subscriber
	pending []pendingUpdate
}

// Hub is the per-process live state channel, keyed by workflow ID.
type Hub struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewHub creates a hub with the default pending-update TTL.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		entries: make(map[string]*entry),
		ttl:     PendingUpdateTTL,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *Hub) getOrCreate(workflowID string) *entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, exists := h.entries[workflowID]
	if !exists {
		e = &entry{}
		h.entries[workflowID] = e
	}

	return e
}

func (h *Hub) get(workflowID string) (*entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, exists := h.entries[workflowID]

	return e, exists
}

// Subscribe registers a connection under the workflow ID, assigns it an
// opaque identifier, replays any buffered pending updates in original order
// and clears the buffer. It returns the assigned subscriber ID.
func (h *Hub) Subscribe(workflowID string, conn Connection) string {
	e := h.getOrCreate(workflowID)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &subscriber{
		id:         uuid.New().String(),
		conn:       conn,
		attachedAt: h.now().UTC(),
	}
	e.subs = append(e.subs, sub)

	h.logger.Debug("subscriber attached",
		"workflow_id", workflowID, "subscriber_id", sub.id, "buffered", len(e.pending))

	h.evictExpiredLocked(e)

	for _, update := range e.pending {
		if err := conn.Write(update.payload); err != nil {
			sub.dead = true

			h.logger.Debug("subscriber died during replay",
				"workflow_id", workflowID, "subscriber_id", sub.id, "error", err)

			break
		}
	}

	e.pending = nil

	if sub.dead {
		h.removeDeadLocked(workflowID, e)
	}

	return sub.id
}

// Unsubscribe removes a connection from the workflow's active list. When the
// list becomes empty and no updates are pending, the workflow entry itself
// is removed.
func (h *Hub) Unsubscribe(workflowID string, conn Connection, reason string) {
	e, exists := h.get(workflowID)
	if !exists {
		return
	}

	e.mu.Lock()

	kept := e.subs[:0]

	for _, sub := range e.subs {
		if sub.conn == conn {
			h.logger.Debug("subscriber detached",
				"workflow_id", workflowID, "subscriber_id", sub.id, "reason", reason)

			continue
		}

		kept = append(kept, sub)
	}

	e.subs = kept
	empty := len(e.subs) == 0 && len(e.pending) == 0
	e.mu.Unlock()

	if empty {
		h.deleteIfEmpty(workflowID)
	}
}

// Publish delivers the event to every active connection for the workflow in
// registration order. With no active connections the serialized event is
// buffered until the next subscriber attaches or the TTL expires. A write
// failure marks the connection dead; all dead connections are unsubscribed
// in a single pass after fan-out so a broken connection never blocks
// delivery to healthy ones.
func (h *Hub) Publish(workflowID string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize %s event: %w", event.GetType(), err)
	}

	e := h.getOrCreate(workflowID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.subs) == 0 {
		e.pending = append(e.pending, pendingUpdate{
			payload:    payload,
			bufferedAt: h.now().UTC(),
		})
		h.evictExpiredLocked(e)

		return nil
	}

	for _, sub := range e.subs {
		if writeErr := sub.conn.Write(payload); writeErr != nil {
			sub.dead = true

			h.logger.Debug("subscriber write failed",
				"workflow_id", workflowID, "subscriber_id", sub.id, "error", writeErr)
		}
	}

	h.removeDeadLocked(workflowID, e)

	return nil
}

// SubscriberCount returns the number of active connections for a workflow.
func (h *Hub) SubscriberCount(workflowID string) int {
	e, exists := h.get(workflowID)
	if !exists {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.subs)
}

// evictExpiredLocked drops pending updates older than the TTL. Callers must
// hold the entry lock.
func (h *Hub) evictExpiredLocked(e *entry) {
	cutoff := h.now().UTC().Add(-h.ttl)

	kept := e.pending[:0]

	for _, update := range e.pending {
		if update.bufferedAt.After(cutoff) {
			kept = append(kept, update)
		}
	}

	e.pending = kept
}

// removeDeadLocked removes every subscriber marked dead. Callers must hold
// the entry lock.
func (h *Hub) removeDeadLocked(workflowID string, e *entry) {
	kept := e.subs[:0]

	for _, sub := range e.subs {
		if sub.dead {
			h.logger.Debug("subscriber detached",
				"workflow_id", workflowID, "subscriber_id", sub.id,
				"reason", UnsubscribeReasonWriteFailure)

			continue
		}

		kept = append(kept, sub)
	}

	e.subs = kept
}

func (h *Hub) deleteIfEmpty(workflowID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, exists := h.entries[workflowID]
	if !exists {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.subs) == 0 && len(e.pending) == 0 {
		delete(h.entries, workflowID)
	}
}
