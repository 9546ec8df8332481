// Package web provides the REST and server-sent-events surface over the
// variable store, records and the live state channel.
package web

import (
	"bufio"
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/atypis/runops/pkg/agent"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
	"github.com/atypis/runops/pkg/variables"
)

// MissionEnqueuer hands missions to the agent worker.
type MissionEnqueuer interface {
	Enqueue(ctx context.Context, mission agent.Mission) error
}

type APIHandlers struct {
	store       *variables.Store
	hub         *livestate.Hub
	persistence persistence.Persistence
	missions    MissionEnqueuer
	validator   *validator.Validate
}

func NewAPIHandlers(
	store *variables.Store,
	hub *livestate.Hub,
	p persistence.Persistence,
	missions MissionEnqueuer,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:       store,
		hub:         hub,
		persistence: p,
		missions:    missions,
		validator:   validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// GetVariables lists a workflow's variables, optionally filtered by a
// '*'-wildcard pattern.
func (h *APIHandlers) GetVariables(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var (
		listed []*models.Variable
		err    error
	)

	if pattern := c.Query("pattern"); pattern != "" {
		listed, err = h.store.Search(c.Context(), workflowID, pattern)
	} else {
		listed, err = h.store.GetAll(c.Context(), workflowID)
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"variables": listed, "count": len(listed)})
}

func (h *APIHandlers) GetVariable(c fiber.Ctx) error {
	workflowID := c.Params("id")
	key := c.Params("key")

	if workflowID == "" || key == "" {
		return badRequest(c, "Workflow ID and variable key are required")
	}

	value, err := h.store.Get(c.Context(), workflowID, key)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"key": key, "value": value})
}

func (h *APIHandlers) SetVariable(c fiber.Ctx) error {
	workflowID := c.Params("id")
	key := c.Params("key")

	if workflowID == "" || key == "" {
		return badRequest(c, "Workflow ID and variable key are required")
	}

	var req SetVariableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.store.SetWithAlias(c.Context(), workflowID, key, req.Value, req.NodeAlias); err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(fiber.Map{"key": key, "value": req.Value})
}

func (h *APIHandlers) DeleteVariable(c fiber.Ctx) error {
	workflowID := c.Params("id")
	key := c.Params("key")

	if workflowID == "" || key == "" {
		return badRequest(c, "Workflow ID and variable key are required")
	}

	if err := h.store.Delete(c.Context(), workflowID, key); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetDisplay renders the workflow's variables as the masked, truncated
// display block.
func (h *APIHandlers) GetDisplay(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	listed, err := h.store.GetAll(c.Context(), workflowID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"display": variables.FormatVariables(listed)})
}

func (h *APIHandlers) CreateRecord(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateRecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.store.CreateRecord(c.Context(), workflowID, req.RecordID, req.RecordType, req.Data)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *APIHandlers) GetRecord(c fiber.Ctx) error {
	workflowID := c.Params("id")
	recordID := c.Params("recordId")

	if workflowID == "" || recordID == "" {
		return badRequest(c, "Workflow ID and record ID are required")
	}

	record, err := h.store.GetRecord(c.Context(), workflowID, recordID)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) QueryRecords(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	filters := persistence.RecordFilters{
		RecordType:         c.Query("record_type"),
		Status:             models.RecordStatus(c.Query("status")),
		IterationNodeAlias: c.Query("iteration_node_alias"),
	}

	records, err := h.store.QueryRecords(c.Context(), workflowID, filters)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"records": records, "count": len(records)})
}

func (h *APIHandlers) UpdateRecord(c fiber.Ctx) error {
	workflowID := c.Params("id")
	recordID := c.Params("recordId")

	if workflowID == "" || recordID == "" {
		return badRequest(c, "Workflow ID and record ID are required")
	}

	var req UpdateRecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.store.UpdateRecord(c.Context(), workflowID, recordID, req.Updates, nil)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) DeleteRecord(c fiber.Ctx) error {
	workflowID := c.Params("id")
	recordID := c.Params("recordId")

	if workflowID == "" || recordID == "" {
		return badRequest(c, "Workflow ID and record ID are required")
	}

	if err := h.store.DeleteRecord(c.Context(), workflowID, recordID); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SaveNode registers a workflow graph node. Iterate nodes become dependency
// edges for variable invalidation.
func (h *APIHandlers) SaveNode(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req SaveNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node := &models.WorkflowNode{
		WorkflowID: workflowID,
		ID:         req.ID,
		Type:       req.Type,
		Position:   req.Position,
		Alias:      req.Alias,
		Config:     req.Config,
		Enabled:    req.Enabled,
	}

	if err := h.persistence.NodeRepository().SaveNode(c.Context(), node); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

// CreateMission enqueues a mission for the agent worker.
func (h *APIHandlers) CreateMission(c fiber.Ctx) error {
	var req CreateMissionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	mission := agent.Mission{
		ID:                 uuid.New().String(),
		WorkflowID:         req.WorkflowID,
		Objective:          req.Objective,
		SystemInstructions: req.SystemInstructions,
		MaxDepth:           req.MaxDepth,
	}

	if err := h.missions.Enqueue(c.Context(), mission); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"mission_id": mission.ID})
}

// StreamLiveState subscribes the client to the workflow's live state channel
// over server-sent events. Buffered updates are replayed first.
func (h *APIHandlers) StreamLiveState(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	conn := newSSEConnection()
	h.hub.Subscribe(workflowID, conn)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer func() {
			conn.close()
			h.hub.Unsubscribe(workflowID, conn, "client disconnected")
		}()

		for payload := range conn.ch {
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}

			if err := w.Flush(); err != nil {
				return
			}
		}
	})
}
