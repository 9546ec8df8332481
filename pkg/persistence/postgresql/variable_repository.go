package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

// VariableRepository handles variable-related database operations.
type VariableRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVariableRepository creates a new variable repository.
func NewVariableRepository(db *sql.DB, logger *slog.Logger) *VariableRepository {
	return &VariableRepository{db: db, logger: logger}
}

func (r *VariableRepository) Get(ctx context.Context, workflowID, key string) (*models.Variable, error) {
	query := `
		SELECT
			workflow_id
		  , key
		  , value
		  , created_at
		  , updated_at
		FROM variables
		WHERE workflow_id = $1 AND key = $2
	`

	row := r.db.QueryRowContext(ctx, query, workflowID, key)

	variable, err := scanVariable(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewVariableError("Get", workflowID, key, persistence.ErrVariableNotFound)
		}

		return nil, fmt.Errorf("failed to scan variable: %w", err)
	}

	return variable, nil
}

func (r *VariableRepository) List(ctx context.Context, workflowID string) ([]*models.Variable, error) {
	query := `
		SELECT
			workflow_id
		  , key
		  , value
		  , created_at
		  , updated_at
		FROM variables
		WHERE workflow_id = $1
		ORDER BY key
	`

	return r.queryVariables(ctx, query, workflowID)
}

func (r *VariableRepository) Upsert(ctx context.Context, variable *models.Variable) error {
	value, err := json.Marshal(variable.Value)
	if err != nil {
		return persistence.NewVariableError("Upsert", variable.WorkflowID, variable.Key,
			fmt.Errorf("failed to marshal value: %w", err))
	}

	now := time.Now().UTC()
	if variable.CreatedAt.IsZero() {
		variable.CreatedAt = now
	}

	variable.UpdatedAt = now

	query := `
		INSERT INTO variables (workflow_id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		variable.WorkflowID, variable.Key, value, variable.CreatedAt, variable.UpdatedAt)
	if err != nil {
		return persistence.NewVariableError("Upsert", variable.WorkflowID, variable.Key, err)
	}

	return nil
}

func (r *VariableRepository) Delete(ctx context.Context, workflowID, key string) error {
	query := `DELETE FROM variables WHERE workflow_id = $1 AND key = $2`

	_, err := r.db.ExecContext(ctx, query, workflowID, key)
	if err != nil {
		return persistence.NewVariableError("Delete", workflowID, key, err)
	}

	return nil
}

func (r *VariableRepository) Search(ctx context.Context, workflowID, pattern string) ([]*models.Variable, error) {
	query := `
		SELECT
			workflow_id
		  , key
		  , value
		  , created_at
		  , updated_at
		FROM variables
		WHERE workflow_id = $1 AND key LIKE $2
		ORDER BY key
	`

	return r.queryVariables(ctx, query, workflowID, toLikePattern(pattern))
}

// toLikePattern translates '*' wildcards to SQL LIKE syntax, escaping any
// literal LIKE metacharacters in the pattern.
func toLikePattern(pattern string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(pattern)

	return strings.ReplaceAll(escaped, "*", "%")
}

func (r *VariableRepository) queryVariables(ctx context.Context, query string, args ...any) ([]*models.Variable, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	variables := make([]*models.Variable, 0)

	for rows.Next() {
		variable, err := scanVariable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}

		variables = append(variables, variable)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating variables: %w", err)
	}

	return variables, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariable(row rowScanner) (*models.Variable, error) {
	var (
		variable models.Variable
		rawValue []byte
	)

	err := row.Scan(
		&variable.WorkflowID,
		&variable.Key,
		&rawValue,
		&variable.CreatedAt,
		&variable.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rawValue) > 0 {
		err = json.Unmarshal(rawValue, &variable.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal variable value: %w", err)
		}
	}

	return &variable, nil
}
