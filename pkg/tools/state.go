package tools

import (
	"context"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
	"github.com/atypis/runops/pkg/variables"
)

// SetVariableHandler writes one workflow variable through the store, which
// also invalidates dependent iteration-derived variables and publishes the
// change notification.
type SetVariableHandler struct {
	WorkflowID string
	NodeAlias  string
	Store      *variables.Store
}

func (h *SetVariableHandler) Name() string { return "setVariable" }

func (h *SetVariableHandler) Description() string {
	return "Set a workflow variable. Overwrites any existing value under the same key."
}

func (h *SetVariableHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":   map[string]any{"type": "string", "minLength": 1},
			"value": map[string]any{},
		},
		"required": []any{"key", "value"},
	}
}

func (h *SetVariableHandler) Execute(ctx context.Context, args map[string]any) Result {
	key, _ := args["key"].(string)

	if err := h.Store.SetWithAlias(ctx, h.WorkflowID, key, args["value"], h.NodeAlias); err != nil {
		return Failure("failed to set variable %q: %s", key, err)
	}

	return OK(map[string]any{"key": key})
}

// GetVariableHandler reads one workflow variable.
type GetVariableHandler struct {
	WorkflowID string
	Store      *variables.Store
}

func (h *GetVariableHandler) Name() string { return "getVariable" }

func (h *GetVariableHandler) Description() string {
	return "Read a workflow variable by key. Returns a null value for a missing key."
}

func (h *GetVariableHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"key"},
	}
}

func (h *GetVariableHandler) Execute(ctx context.Context, args map[string]any) Result {
	key, _ := args["key"].(string)

	value, err := h.Store.Get(ctx, h.WorkflowID, key)
	if err != nil {
		return Failure("failed to get variable %q: %s", key, err)
	}

	return OK(map[string]any{"key": key, "value": value})
}

// CreateRecordHandler creates a record under its natural key.
type CreateRecordHandler struct {
	WorkflowID string
	Store      *variables.Store
}

func (h *CreateRecordHandler) Name() string { return "createRecord" }

func (h *CreateRecordHandler) Description() string {
	return "Create a record. Arbitrary top-level data keys land in the record's fields sub-object."
}

func (h *CreateRecordHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recordId":   map[string]any{"type": "string", "minLength": 1},
			"recordType": map[string]any{"type": "string", "minLength": 1},
			"data":       map[string]any{"type": "object"},
		},
		"required": []any{"recordId", "recordType"},
	}
}

func (h *CreateRecordHandler) Execute(ctx context.Context, args map[string]any) Result {
	recordID, _ := args["recordId"].(string)
	recordType, _ := args["recordType"].(string)
	data, _ := args["data"].(map[string]any)

	record, err := h.Store.CreateRecord(ctx, h.WorkflowID, recordID, recordType, data)
	if err != nil {
		return Failure("failed to create record %q: %s", recordID, err)
	}

	return OK(map[string]any{"recordId": record.RecordID, "status": string(record.Status)})
}

// UpdateRecordHandler applies dot-path updates to a record.
type UpdateRecordHandler struct {
	WorkflowID string
	Store      *variables.Store
}

func (h *UpdateRecordHandler) Name() string { return "updateRecord" }

func (h *UpdateRecordHandler) Description() string {
	return "Update a record with dot-path keys, e.g. \"vars.classification\" sets one nested key without clobbering siblings."
}

func (h *UpdateRecordHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recordId": map[string]any{"type": "string", "minLength": 1},
			"updates":  map[string]any{"type": "object"},
		},
		"required": []any{"recordId", "updates"},
	}
}

func (h *UpdateRecordHandler) Execute(ctx context.Context, args map[string]any) Result {
	recordID, _ := args["recordId"].(string)
	updates, _ := args["updates"].(map[string]any)

	record, err := h.Store.UpdateRecord(ctx, h.WorkflowID, recordID, updates, nil)
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return Failure("record %q does not exist", recordID)
		}

		return Failure("failed to update record %q: %s", recordID, err)
	}

	return OK(map[string]any{"recordId": record.RecordID, "status": string(record.Status)})
}

// QueryRecordsHandler lists records matching optional filters.
type QueryRecordsHandler struct {
	WorkflowID string
	Store      *variables.Store
}

func (h *QueryRecordsHandler) Name() string { return "queryRecords" }

func (h *QueryRecordsHandler) Description() string {
	return "Query the workflow's records, optionally filtered by record type and status."
}

func (h *QueryRecordsHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recordType": map[string]any{"type": "string"},
			"status":     map[string]any{"type": "string"},
		},
	}
}

func (h *QueryRecordsHandler) Execute(ctx context.Context, args map[string]any) Result {
	recordType, _ := args["recordType"].(string)
	status, _ := args["status"].(string)

	records, err := h.Store.QueryRecords(ctx, h.WorkflowID, persistence.RecordFilters{
		RecordType: recordType,
		Status:     models.RecordStatus(status),
	})
	if err != nil {
		return Failure("failed to query records: %s", err)
	}

	listed := make([]map[string]any, 0, len(records))
	for _, record := range records {
		listed = append(listed, map[string]any{
			"recordId":   record.RecordID,
			"recordType": record.RecordType,
			"status":     string(record.Status),
			"data":       record.Data,
		})
	}

	return OK(map[string]any{"records": listed, "count": len(listed)})
}
