package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/atypis/runops/pkg/models"
)

// NodeRepository handles workflow node database operations.
type NodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository.
func NewNodeRepository(db *sql.DB, logger *slog.Logger) *NodeRepository {
	return &NodeRepository{db: db, logger: logger}
}

// ListIterateBindings returns the dependency bindings of every enabled
// iterate node in the workflow.
func (r *NodeRepository) ListIterateBindings(ctx context.Context, workflowID string) ([]*models.IterateBinding, error) {
	query := `
		SELECT
			workflow_id
		  , position
		  , alias
		  , config
		FROM workflow_nodes
		WHERE workflow_id = $1 AND node_type = $2 AND enabled
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, models.NodeTypeIterate)
	if err != nil {
		return nil, fmt.Errorf("failed to query iterate nodes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	bindings := make([]*models.IterateBinding, 0)

	for rows.Next() {
		var (
			binding   models.IterateBinding
			alias     sql.NullString
			rawConfig []byte
		)

		err := rows.Scan(&binding.WorkflowID, &binding.Position, &alias, &rawConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to scan iterate node: %w", err)
		}

		if alias.Valid {
			binding.Alias = alias.String
		}

		if len(rawConfig) > 0 {
			var config map[string]any

			err = json.Unmarshal(rawConfig, &config)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal node config: %w", err)
			}

			node := models.WorkflowNode{Config: config}
			binding.Over = node.OverExpression()
		}

		bindings = append(bindings, &binding)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return bindings, nil
}

// SaveNode upserts a workflow node.
func (r *NodeRepository) SaveNode(ctx context.Context, node *models.WorkflowNode) error {
	config, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal node config: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO workflow_nodes (workflow_id, id, node_type, position, alias, config, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (workflow_id, id)
		DO UPDATE SET
			node_type = EXCLUDED.node_type
		  , position = EXCLUDED.position
		  , alias = EXCLUDED.alias
		  , config = EXCLUDED.config
		  , enabled = EXCLUDED.enabled
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		node.WorkflowID, node.ID, node.Type, node.Position,
		nullableString(node.Alias), config, node.Enabled, now)
	if err != nil {
		return fmt.Errorf("failed to save node %s in workflow %s: %w", node.ID, node.WorkflowID, err)
	}

	return nil
}
