// Package models defines the core domain models for workflow state orchestration.
package models

import (
	"fmt"
	"strings"
	"time"
)

// IterationKeyMarker separates an iteration-derived variable key into its
// prefix, node position and suffix segments.
const IterationKeyMarker = "@iter:"

// Variable is a workflow-scoped key/value pair. Keys are unique per workflow;
// writes carry upsert semantics.
type Variable struct {
	WorkflowID string    `json:"workflow_id" validate:"required"`
	Key        string    `json:"key"         validate:"required,min=1"`
	Value      any       `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsIterationDerived reports whether the variable was computed by an iterate
// node and is only valid while its source variable is unchanged.
func (v *Variable) IsIterationDerived() bool {
	return strings.Contains(v.Key, IterationKeyMarker)
}

// IterationKeyPattern returns the search pattern matching every variable
// derived by the iterate node at the given position.
func IterationKeyPattern(position int) string {
	return fmt.Sprintf("*%s%d:*", IterationKeyMarker, position)
}

var sensitiveKeyFragments = []string{
	"password",
	"token",
	"key",
	"secret",
	"auth",
	"credential",
}

// IsSensitiveKey reports whether a variable key must never be surfaced in
// display form. Matching is a case-insensitive substring check.
func IsSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}

	return false
}
