// Package tools maps named tool calls from the reasoning engine onto
// external collaborators and normalizes every outcome into a plain result.
// No collaborator error type ever crosses the dispatcher boundary.
package tools

import "fmt"

// Result is the normalized outcome of one tool invocation.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK returns a successful result carrying the given data.
func OK(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Failure returns a failed result with a formatted message.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
