// Package variables implements the workflow-scoped variable store with
// dependency-aware invalidation of iteration-derived keys and live change
// notifications.
package variables

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atypis/runops/pkg/events"
	"github.com/atypis/runops/pkg/livestate"
	"github.com/atypis/runops/pkg/log"
	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

// Store layers dependency tracking and change notification over the variable
// repository. Every successful write invalidates iteration-derived variables
// computed from the written key and publishes a variableUpdate to the live
// state channel.
type Store struct {
	persistence persistence.Persistence
	hub         *livestate.Hub
	logger      *slog.Logger
}

func NewStore(p persistence.Persistence, hub *livestate.Hub) *Store {
	return &Store{
		persistence: p,
		hub:         hub,
		logger:      log.WithModule("variables"),
	}
}

// Get returns the variable's value, or nil when the key does not exist.
func (s *Store) Get(ctx context.Context, workflowID, key string) (any, error) {
	variable, err := s.persistence.VariableRepository().Get(ctx, workflowID, key)
	if err != nil {
		if persistence.IsVariableNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get variable %s: %w", key, err)
	}

	return variable.Value, nil
}

// GetAll returns every variable for the workflow, ordered by key.
func (s *Store) GetAll(ctx context.Context, workflowID string) ([]*models.Variable, error) {
	variables, err := s.persistence.VariableRepository().List(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}

	return variables, nil
}

// Set upserts the variable, then invalidates every iteration-derived variable
// whose iterate node consumes the written key, then publishes the change to
// the live state channel. Only an upsert failure rolls back the write;
// invalidation and publish failures are logged and swallowed so a reader
// never sees the write itself lost to a secondary concern.
func (s *Store) Set(ctx context.Context, workflowID, key string, value any) error {
	return s.SetWithAlias(ctx, workflowID, key, value, "")
}

// SetWithAlias is Set with the acting node's alias carried on the published
// variableUpdate event.
func (s *Store) SetWithAlias(ctx context.Context, workflowID, key string, value any, nodeAlias string) error {
	variable := &models.Variable{
		WorkflowID: workflowID,
		Key:        key,
		Value:      value,
	}

	if err := s.persistence.VariableRepository().Upsert(ctx, variable); err != nil {
		return fmt.Errorf("failed to set variable %s: %w", key, err)
	}

	s.invalidateDependents(ctx, workflowID, key)

	if err := s.hub.Publish(workflowID, events.NewVariableUpdate(workflowID, key, nodeAlias, value)); err != nil {
		s.logger.Warn("failed to publish variable update",
			"workflow_id", workflowID, "key", key, "error", err)
	}

	return nil
}

// Delete removes the variable. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, workflowID, key string) error {
	if err := s.persistence.VariableRepository().Delete(ctx, workflowID, key); err != nil {
		return fmt.Errorf("failed to delete variable %s: %w", key, err)
	}

	return nil
}

// Search returns variables whose key matches the pattern ('*' wildcards).
func (s *Store) Search(ctx context.Context, workflowID, pattern string) ([]*models.Variable, error) {
	variables, err := s.persistence.VariableRepository().Search(ctx, workflowID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search variables: %w", err)
	}

	return variables, nil
}

// Snapshot returns the workflow's current variables as a raw key/value map
// alongside the formatted display string, for state update events.
func (s *Store) Snapshot(ctx context.Context, workflowID string) (map[string]any, string, error) {
	variables, err := s.GetAll(ctx, workflowID)
	if err != nil {
		return nil, "", err
	}

	raw := make(map[string]any, len(variables))
	for _, variable := range variables {
		raw[variable.Key] = variable.Value
	}

	return raw, FormatVariables(variables), nil
}

// invalidateDependents deletes every iteration-derived variable computed by
// an iterate node whose over expression references the written key. Best
// effort: a binding lookup or delete failure never aborts the write that
// triggered it.
func (s *Store) invalidateDependents(ctx context.Context, workflowID, key string) {
	bindings, err := s.persistence.NodeRepository().ListIterateBindings(ctx, workflowID)
	if err != nil {
		s.logger.Warn("failed to resolve iterate bindings, skipping invalidation",
			"workflow_id", workflowID, "key", key, "error", err)

		return
	}

	for _, binding := range bindings {
		if !binding.DependsOn(key) {
			continue
		}

		pattern := models.IterationKeyPattern(binding.Position)

		stale, err := s.persistence.VariableRepository().Search(ctx, workflowID, pattern)
		if err != nil {
			s.logger.Warn("failed to search iteration-derived variables",
				"workflow_id", workflowID, "pattern", pattern, "error", err)

			continue
		}

		for _, variable := range stale {
			if err := s.persistence.VariableRepository().Delete(ctx, workflowID, variable.Key); err != nil {
				s.logger.Warn("failed to delete stale iteration-derived variable",
					"workflow_id", workflowID, "key", variable.Key, "error", err)

				continue
			}

			s.logger.Debug("invalidated iteration-derived variable",
				"workflow_id", workflowID, "key", variable.Key,
				"source_key", key, "node_position", binding.Position)
		}
	}
}
