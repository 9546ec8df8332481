package file

import (
	"context"
	"sort"
	"time"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

const variablesFile = "variables.json"

// VariableRepository is the file-backed variable store.
type VariableRepository struct {
	persistence *Persistence
}

func (r *VariableRepository) load(workflowID string) (map[string]*models.Variable, error) {
	variables := make(map[string]*models.Variable)

	err := r.persistence.readCollection(workflowID, variablesFile, &variables)
	if err != nil {
		return nil, err
	}

	return variables, nil
}

func (r *VariableRepository) Get(ctx context.Context, workflowID, key string) (*models.Variable, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	variables, err := r.load(workflowID)
	if err != nil {
		return nil, err
	}

	variable, exists := variables[key]
	if !exists {
		return nil, persistence.NewVariableError("Get", workflowID, key, persistence.ErrVariableNotFound)
	}

	return variable, nil
}

func (r *VariableRepository) List(ctx context.Context, workflowID string) ([]*models.Variable, error) {
	return r.Search(ctx, workflowID, "*")
}

func (r *VariableRepository) Upsert(ctx context.Context, variable *models.Variable) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	variables, err := r.load(variable.WorkflowID)
	if err != nil {
		return persistence.NewVariableError("Upsert", variable.WorkflowID, variable.Key, err)
	}

	now := time.Now().UTC()

	if existing, exists := variables[variable.Key]; exists {
		variable.CreatedAt = existing.CreatedAt
	} else if variable.CreatedAt.IsZero() {
		variable.CreatedAt = now
	}

	variable.UpdatedAt = now
	variables[variable.Key] = variable

	err = r.persistence.writeCollection(variable.WorkflowID, variablesFile, variables)
	if err != nil {
		return persistence.NewVariableError("Upsert", variable.WorkflowID, variable.Key, err)
	}

	return nil
}

func (r *VariableRepository) Delete(ctx context.Context, workflowID, key string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	variables, err := r.load(workflowID)
	if err != nil {
		return persistence.NewVariableError("Delete", workflowID, key, err)
	}

	delete(variables, key)

	err = r.persistence.writeCollection(workflowID, variablesFile, variables)
	if err != nil {
		return persistence.NewVariableError("Delete", workflowID, key, err)
	}

	return nil
}

func (r *VariableRepository) Search(ctx context.Context, workflowID, pattern string) ([]*models.Variable, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	variables, err := r.load(workflowID)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Variable, 0)

	for key, variable := range variables {
		if matchPattern(pattern, key) {
			matches = append(matches, variable)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key < matches[j].Key
	})

	return matches, nil
}
