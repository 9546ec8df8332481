package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

// RecordRepository handles record-related database operations.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

func (r *RecordRepository) Get(ctx context.Context, workflowID, recordID string) (*models.Record, error) {
	query := `
		SELECT
			workflow_id
		  , record_id
		  , record_type
		  , data
		  , status
		  , iteration_node_alias
		  , created_at
		  , updated_at
		FROM records
		WHERE workflow_id = $1 AND record_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, workflowID, recordID)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("Get", workflowID, recordID, persistence.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	return record, nil
}

func (r *RecordRepository) Upsert(ctx context.Context, record *models.Record) error {
	data, err := json.Marshal(record.Data)
	if err != nil {
		return persistence.NewRecordError("Upsert", record.WorkflowID, record.RecordID,
			fmt.Errorf("failed to marshal data: %w", err))
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	query := `
		INSERT INTO records (workflow_id, record_id, record_type, data, status, iteration_node_alias, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workflow_id, record_id)
		DO UPDATE SET
			record_type = EXCLUDED.record_type
		  , data = EXCLUDED.data
		  , status = EXCLUDED.status
		  , iteration_node_alias = EXCLUDED.iteration_node_alias
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.WorkflowID,
		record.RecordID,
		record.RecordType,
		data,
		record.Status,
		nullableString(record.IterationNodeAlias),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Upsert", record.WorkflowID, record.RecordID, err)
	}

	return nil
}

func (r *RecordRepository) Query(ctx context.Context, workflowID string, filters persistence.RecordFilters) ([]*models.Record, error) {
	query := `
		SELECT
			workflow_id
		  , record_id
		  , record_type
		  , data
		  , status
		  , iteration_node_alias
		  , created_at
		  , updated_at
		FROM records
		WHERE workflow_id = $1
	`

	args := []any{workflowID}

	if filters.RecordType != "" {
		args = append(args, filters.RecordType)
		query += " AND record_type = $" + strconv.Itoa(len(args))
	}

	if filters.Status != "" {
		args = append(args, string(filters.Status))
		query += " AND status = $" + strconv.Itoa(len(args))
	}

	if filters.IterationNodeAlias != "" {
		args = append(args, filters.IterationNodeAlias)
		query += " AND iteration_node_alias = $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.Record, 0)

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func (r *RecordRepository) Delete(ctx context.Context, workflowID, recordID string) error {
	query := `DELETE FROM records WHERE workflow_id = $1 AND record_id = $2`

	_, err := r.db.ExecContext(ctx, query, workflowID, recordID)
	if err != nil {
		return persistence.NewRecordError("Delete", workflowID, recordID, err)
	}

	return nil
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record  models.Record
		rawData []byte
		alias   sql.NullString
	)

	err := row.Scan(
		&record.WorkflowID,
		&record.RecordID,
		&record.RecordType,
		&rawData,
		&record.Status,
		&alias,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Data = models.NewRecordData()

	if len(rawData) > 0 {
		err = json.Unmarshal(rawData, &record.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal record data: %w", err)
		}
	}

	if alias.Valid {
		record.IterationNodeAlias = alias.String
	}

	return &record, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}
