// Package persistence provides the data storage abstraction layer for
// workflow variables, records and node bindings.
package persistence

import (
	"context"

	"github.com/atypis/runops/pkg/models"
)

type Persistence interface {
	VariableRepository() VariableRepository
	RecordRepository() RecordRepository
	NodeRepository() NodeRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// VariableRepository stores workflow-scoped key/value variables.
// Keys are unique per workflow; Upsert overwrites value and updated_at.
type VariableRepository interface {
	Get(ctx context.Context, workflowID, key string) (*models.Variable, error)
	List(ctx context.Context, workflowID string) ([]*models.Variable, error)
	Upsert(ctx context.Context, variable *models.Variable) error
	Delete(ctx context.Context, workflowID, key string) error

	// Search returns variables whose key matches the pattern. The pattern
	// supports '*' wildcards; a pattern without wildcards is an exact match.
	Search(ctx context.Context, workflowID, pattern string) ([]*models.Variable, error)
}

// RecordRepository stores records upserted by (workflow_id, record_id).
type RecordRepository interface {
	Get(ctx context.Context, workflowID, recordID string) (*models.Record, error)
	Upsert(ctx context.Context, record *models.Record) error
	Query(ctx context.Context, workflowID string, filters RecordFilters) ([]*models.Record, error)
	Delete(ctx context.Context, workflowID, recordID string) error
}

// RecordFilters narrows a record query. Zero-valued fields are ignored.
type RecordFilters struct {
	RecordType         string
	Status             models.RecordStatus
	IterationNodeAlias string
}

// NodeRepository exposes workflow graph nodes for dependency resolution.
type NodeRepository interface {
	ListIterateBindings(ctx context.Context, workflowID string) ([]*models.IterateBinding, error)
	SaveNode(ctx context.Context, node *models.WorkflowNode) error
}
