package variables

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/atypis/runops/pkg/models"
)

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    any
		expected string
	}{
		{
			name:     "sensitive key is masked regardless of value",
			key:      "password_token",
			value:    "abc",
			expected: MaskSentinel,
		},
		{
			name:     "api key casing does not defeat masking",
			key:      "API_KEY",
			value:    12345,
			expected: MaskSentinel,
		},
		{
			name:     "nil renders as null",
			key:      "result",
			value:    nil,
			expected: "null",
		},
		{
			name:     "short string passes through",
			key:      "status",
			value:    "running",
			expected: "running",
		},
		{
			name:     "number renders plainly",
			key:      "count",
			value:    42,
			expected: "42",
		},
		{
			name:     "empty array",
			key:      "items",
			value:    []any{},
			expected: "[]",
		},
		{
			name:     "single element array has no count suffix",
			key:      "items",
			value:    []any{"only"},
			expected: "[only]",
		},
		{
			name:     "array shows first element and count",
			key:      "items",
			value:    []any{"first", "second", "third"},
			expected: "[first, +2 more]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatForDisplay(tt.key, tt.value))
		})
	}
}

func TestFormatForDisplayTruncatesLongString(t *testing.T) {
	long := strings.Repeat("x", 200)

	formatted := FormatForDisplay("body", long)

	assert.Contains(t, formatted, "… (+80 chars)")
	assert.True(t, strings.HasPrefix(formatted, strings.Repeat("x", 120)))
}

func TestFormatForDisplayTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 200)

	formatted := FormatForDisplay("note", long)

	assert.True(t, utf8.ValidString(formatted))
	assert.Contains(t, formatted, "… (+80 chars)")
	assert.True(t, strings.HasPrefix(formatted, strings.Repeat("é", 120)))
}

func TestFormatForDisplayTruncatesObject(t *testing.T) {
	obj := map[string]any{"description": strings.Repeat("y", 300)}

	formatted := FormatForDisplay("details", obj)

	assert.Contains(t, formatted, "chars)")
	assert.LessOrEqual(t, len(formatted), displayBudget+30)
}

func TestFormatVariables(t *testing.T) {
	variables := []*models.Variable{
		{Key: "cart", Value: []any{"a", "b"}},
		{Key: "session_token", Value: "super-secret"},
	}

	display := FormatVariables(variables)

	assert.Equal(t, "cart: [a, +1 more]\nsession_token: "+MaskSentinel, display)
}

func TestFormatVariablesEmpty(t *testing.T) {
	assert.Equal(t, "(no variables set)", FormatVariables(nil))
}
