package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/atypis/runops/pkg/models"
)

const nodesFile = "nodes.json"

// NodeRepository is the file-backed workflow node store.
type NodeRepository struct {
	persistence *Persistence
}

func (r *NodeRepository) load(workflowID string) (map[string]*models.WorkflowNode, error) {
	nodes := make(map[string]*models.WorkflowNode)

	err := r.persistence.readCollection(workflowID, nodesFile, &nodes)
	if err != nil {
		return nil, err
	}

	return nodes, nil
}

func (r *NodeRepository) ListIterateBindings(ctx context.Context, workflowID string) ([]*models.IterateBinding, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	nodes, err := r.load(workflowID)
	if err != nil {
		return nil, err
	}

	bindings := make([]*models.IterateBinding, 0)

	for _, node := range nodes {
		if !node.IsIterateNode() || !node.Enabled {
			continue
		}

		bindings = append(bindings, &models.IterateBinding{
			WorkflowID: workflowID,
			Position:   node.Position,
			Alias:      node.Alias,
			Over:       node.OverExpression(),
		})
	}

	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].Position < bindings[j].Position
	})

	return bindings, nil
}

func (r *NodeRepository) SaveNode(ctx context.Context, node *models.WorkflowNode) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	nodes, err := r.load(node.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load nodes for workflow %s: %w", node.WorkflowID, err)
	}

	nodes[node.ID] = node

	err = r.persistence.writeCollection(node.WorkflowID, nodesFile, nodes)
	if err != nil {
		return fmt.Errorf("failed to save node %s in workflow %s: %w", node.ID, node.WorkflowID, err)
	}

	return nil
}
