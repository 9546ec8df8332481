package web

// SetVariableRequest writes one workflow variable.
type SetVariableRequest struct {
	Value     any    `json:"value"`
	NodeAlias string `json:"node_alias,omitempty"`
}

// CreateRecordRequest creates a record; arbitrary keys in Data land in the
// record's fields sub-object.
type CreateRecordRequest struct {
	RecordID   string         `json:"record_id"   validate:"required,min=1"`
	RecordType string         `json:"record_type" validate:"required,min=1"`
	Data       map[string]any `json:"data"`
}

// UpdateRecordRequest applies dot-path updates to a record.
type UpdateRecordRequest struct {
	Updates map[string]any `json:"updates" validate:"required,min=1"`
}

// SaveNodeRequest registers or updates a workflow graph node. Iterate nodes
// carry a config.over expression naming the variable they consume.
type SaveNodeRequest struct {
	ID       string         `json:"id"       validate:"required,min=1"`
	Type     string         `json:"type"     validate:"required,min=1"`
	Position int            `json:"position" validate:"gte=0"`
	Alias    string         `json:"alias"`
	Config   map[string]any `json:"config"`
	Enabled  bool           `json:"enabled"`
}

// CreateMissionRequest enqueues a mission for the agent worker.
type CreateMissionRequest struct {
	WorkflowID         string `json:"workflow_id" validate:"required,min=1"`
	Objective          string `json:"objective"   validate:"required,min=1"`
	SystemInstructions string `json:"system_instructions"`
	MaxDepth           int    `json:"max_depth"   validate:"gte=0"`
}
