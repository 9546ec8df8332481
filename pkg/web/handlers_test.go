package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atypis/runops/pkg/agent"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence/file"
	"github.com/atypis/runops/pkg/variables"
	"github.com/atypis/runops/pkg/web"
)

type stubQueue struct {
	enqueued []agent.Mission
}

func (q *stubQueue) Enqueue(_ context.Context, mission agent.Mission) error {
	q.enqueued = append(q.enqueued, mission)

	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *stubQueue) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	hub := livestate.NewHub(slog.Default())
	store := variables.NewStore(p, hub)
	queue := &stubQueue{}

	handlers := web.NewAPIHandlers(store, hub, p, queue, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

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
	app.Post("/missions", handlers.CreateMission)

	return app, queue
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader

	if payload != nil {
		serialized, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(serialized)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestSetAndGetVariable(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/workflows/wf-1/variables/cart",
		web.SetVariableRequest{Value: []any{"a", "b"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/wf-1/variables/cart", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []any{"a", "b"}, payload["value"])
}

func TestGetMissingVariableReturnsNullValue(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/wf-1/variables/absent", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Nil(t, payload["value"])
}

func TestDisplayMasksSensitiveVariables(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPut, "/workflows/wf-1/variables/session_token",
		web.SetVariableRequest{Value: "super-secret"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/wf-1/display", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), variables.MaskSentinel)
	assert.NotContains(t, string(body), "super-secret")
}

func TestCreateAndUpdateRecord(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/wf-1/records",
		web.CreateRecordRequest{
			RecordID:   "rec-1",
			RecordType: "lead",
			Data:       map[string]any{"email": "a@example.com"},
		}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPatch, "/workflows/wf-1/records/rec-1",
		web.UpdateRecordRequest{Updates: map[string]any{"vars.stage": "qualified"}}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var record models.Record

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	assert.Equal(t, "qualified", record.Data.Vars["stage"])
	assert.Equal(t, "a@example.com", record.Data.Fields["email"])
}

func TestCreateRecordValidation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/wf-1/records",
		web.CreateRecordRequest{RecordType: "lead"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateMissingRecordReturnsNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/wf-1/records/ghost",
		web.UpdateRecordRequest{Updates: map[string]any{"status": "completed"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveNodeThenVariableInvalidation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/wf-1/nodes",
		web.SaveNodeRequest{
			ID:       "node-2",
			Type:     models.NodeTypeIterate,
			Position: 2,
			Alias:    "per-item",
			Config:   map[string]any{"over": "{{items}}"},
			Enabled:  true,
		}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPut, "/workflows/wf-1/variables/row@iter:2:name",
		web.SetVariableRequest{Value: "stale"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPut, "/workflows/wf-1/variables/items",
		web.SetVariableRequest{Value: []any{"x"}}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workflows/wf-1/variables/row@iter:2:name", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Nil(t, payload["value"], "iteration-derived variable must be invalidated")
}

func TestCreateMissionEnqueues(t *testing.T) {
	app, queue := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/missions",
		web.CreateMissionRequest{WorkflowID: "wf-1", Objective: "buy the widget"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "wf-1", queue.enqueued[0].WorkflowID)
	assert.NotEmpty(t, queue.enqueued[0].ID)
}

func TestCreateMissionValidation(t *testing.T) {
	app, queue := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/missions",
		web.CreateMissionRequest{WorkflowID: "wf-1"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, queue.enqueued)
}
