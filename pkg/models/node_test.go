package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterateBindingDependsOn(t *testing.T) {
	tests := []struct {
		name     string
		over     string
		key      string
		expected bool
	}{
		{name: "bare key", over: "items", key: "items", expected: true},
		{name: "state prefix", over: "state.items", key: "items", expected: true},
		{name: "template", over: "{{items}}", key: "items", expected: true},
		{name: "template with nested path", over: "{{items.entries}}", key: "items", expected: true},
		{name: "different key", over: "items", key: "orders", expected: false},
		{name: "template of different key", over: "{{orders}}", key: "items", expected: false},
		{name: "key prefix without dot is no match", over: "{{itemsById}}", key: "items", expected: false},
		{name: "empty over", over: "", key: "items", expected: false},
		{name: "empty key", over: "items", key: "", expected: false},
		{name: "whitespace trimmed", over: "  state.items  ", key: "items", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding := &IterateBinding{Over: tt.over}

			assert.Equal(t, tt.expected, binding.DependsOn(tt.key))
		})
	}
}

func TestWorkflowNodeOverExpression(t *testing.T) {
	node := &WorkflowNode{Type: NodeTypeIterate, Config: map[string]any{"over": " {{items}} "}}

	assert.True(t, node.IsIterateNode())
	assert.Equal(t, "{{items}}", node.OverExpression())

	bare := &WorkflowNode{Type: "click"}
	assert.False(t, bare.IsIterateNode())
	assert.Empty(t, bare.OverExpression())
}
