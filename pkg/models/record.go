package models

import "time"

// RecordStatus defines the lifecycle states of a record.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusRunning   RecordStatus = "running"
	RecordStatusCompleted RecordStatus = "completed"
	RecordStatusError     RecordStatus = "error"
)

// RecordData carries the four reserved sub-objects every record owns.
// Arbitrary top-level keys supplied at creation land in Fields.
type RecordData struct {
	Fields  map[string]any `json:"fields"`
	Vars    map[string]any `json:"vars"`
	Targets map[string]any `json:"targets"`
	History []any          `json:"history"`
}

// SubObject returns the named map sub-object, allocating it when absent, or
// nil for "history" and unknown names.
func (d *RecordData) SubObject(name string) map[string]any {
	switch name {
	case "fields":
		if d.Fields == nil {
			d.Fields = make(map[string]any)
		}

		return d.Fields
	case "vars":
		if d.Vars == nil {
			d.Vars = make(map[string]any)
		}

		return d.Vars
	case "targets":
		if d.Targets == nil {
			d.Targets = make(map[string]any)
		}

		return d.Targets
	default:
		return nil
	}
}

// NewRecordData returns RecordData with all reserved sub-objects allocated.
func NewRecordData() RecordData {
	return RecordData{
		Fields:  make(map[string]any),
		Vars:    make(map[string]any),
		Targets: make(map[string]any),
		History: make([]any, 0),
	}
}

// Record is a structured unit of work scoped to a workflow, upserted by its
// natural key (workflow_id, record_id).
type Record struct {
	WorkflowID         string       `json:"workflow_id"          validate:"required"`
	RecordID           string       `json:"record_id"            validate:"required"`
	RecordType         string       `json:"record_type"          validate:"required"`
	Data               RecordData   `json:"data"`
	Status             RecordStatus `json:"status"`
	IterationNodeAlias string       `json:"iteration_node_alias,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
