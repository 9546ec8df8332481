package models

import "strings"

// Built-in node types relevant to state dependency tracking.
const (
	NodeTypeIterate = "iterate"
)

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	ID         string         `json:"id"          validate:"required"`
	Type       string         `json:"type"        validate:"required"`
	Position   int            `json:"position"`
	Alias      string         `json:"alias"`
	Config     map[string]any `json:"config"`
	Enabled    bool           `json:"enabled"`
}

// IsIterateNode reports whether this node consumes a collection-valued
// variable and produces per-element derived variables.
func (n *WorkflowNode) IsIterateNode() bool {
	return n.Type == NodeTypeIterate
}

// OverExpression returns the iterate node's config.over expression, or ""
// when the node has none.
func (n *WorkflowNode) OverExpression() string {
	if n.Config == nil {
		return ""
	}

	over, _ := n.Config["over"].(string)

	return strings.TrimSpace(over)
}

// IterateBinding is the dependency edge from a variable to an iterate node
// consuming it.
type IterateBinding struct {
	WorkflowID string `json:"workflow_id"`
	Position   int    `json:"position"`
	Alias      string `json:"alias"`
	Over       string `json:"over"`
}

// DependsOn reports whether the binding's over expression references the
// given variable key. Recognized forms: the bare key, "state.<key>",
// "{{<key>}}" and any "{{<key>.<path>..." template prefix.
func (b *IterateBinding) DependsOn(key string) bool {
	over := strings.TrimSpace(b.Over)
	if over == "" || key == "" {
		return false
	}

	switch over {
	case key, "state." + key, "{{" + key + "}}":
		return true
	}

	return strings.HasPrefix(over, "{{"+key+".")
}
