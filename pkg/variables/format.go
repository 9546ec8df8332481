package variables

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atypis/runops/pkg/models"
)

// MaskSentinel replaces the value of any sensitive-keyed variable in display
// output.
const MaskSentinel = "***MASKED***"

// displayBudget caps the rendered length of a single value.
const displayBudget = 120

// FormatForDisplay renders one variable value for human-facing output. The
// value of any sensitive key is masked regardless of its content; arrays show
// their first element and a count suffix; long strings and objects are
// truncated with a length-aware ellipsis. Pure: no storage access.
func FormatForDisplay(key string, value any) string {
	if models.IsSensitiveKey(key) {
		return MaskSentinel
	}

	return formatValue(value, displayBudget)
}

// FormatVariables renders the full variable set as one display block, one
// "key: value" line per variable in input order.
func FormatVariables(variables []*models.Variable) string {
	if len(variables) == 0 {
		return "(no variables set)"
	}

	lines := make([]string, 0, len(variables))

	for _, variable := range variables {
		lines = append(lines, fmt.Sprintf("%s: %s", variable.Key, FormatForDisplay(variable.Key, variable.Value)))
	}

	return strings.Join(lines, "\n")
}

func formatValue(value any, budget int) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return truncate(v, budget)
	case []any:
		return formatArray(v, budget)
	case map[string]any:
		return formatObject(v, budget)
	default:
		return truncate(fmt.Sprintf("%v", v), budget)
	}
}

func formatArray(arr []any, budget int) string {
	if len(arr) == 0 {
		return "[]"
	}

	first := formatValue(arr[0], budget/2)

	if len(arr) == 1 {
		return fmt.Sprintf("[%s]", first)
	}

	return fmt.Sprintf("[%s, +%d more]", first, len(arr)-1)
}

func formatObject(obj map[string]any, budget int) string {
	serialized, err := json.Marshal(obj)
	if err != nil {
		return fmt.Sprintf("{%d fields}", len(obj))
	}

	return truncate(string(serialized), budget)
}

// truncate bounds s to budget characters, cutting on rune boundaries so
// multi-byte input never yields invalid UTF-8.
func truncate(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}

	return fmt.Sprintf("%s… (+%d chars)", string(runes[:budget]), len(runes)-budget)
}
