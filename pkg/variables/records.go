package variables

import (
	"context"
	"fmt"
	"strings"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

// reservedRecordKeys are the data sub-objects a record always carries. Keys
// passed at creation that are not reserved land in data.fields.
var reservedRecordKeys = map[string]bool{
	"fields":  true,
	"vars":    true,
	"targets": true,
	"history": true,
}

// CreateRecord creates or replaces a record under its natural key. Reserved
// keys in payload seed the matching data sub-object; everything else goes to
// data.fields.
func (s *Store) CreateRecord(ctx context.Context, workflowID, recordID, recordType string, payload map[string]any) (*models.Record, error) {
	record := &models.Record{
		WorkflowID: workflowID,
		RecordID:   recordID,
		RecordType: recordType,
		Data:       models.NewRecordData(),
		Status:     models.RecordStatusPending,
	}

	for key, value := range payload {
		switch key {
		case "fields", "vars", "targets":
			if nested, ok := value.(map[string]any); ok {
				target := record.Data.SubObject(key)
				for k, v := range nested {
					target[k] = v
				}
			}
		case "history":
			if entries, ok := value.([]any); ok {
				record.Data.History = entries
			}
		case "status":
			if status, ok := value.(string); ok {
				record.Status = models.RecordStatus(status)
			}
		default:
			record.Data.Fields[key] = value
		}
	}

	if err := s.persistence.RecordRepository().Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record %s: %w", recordID, err)
	}

	return record, nil
}

// UpdateRecord applies dot-path updates ("vars.classification" sets a nested
// key without clobbering siblings) and persists the result. When live is
// non-nil it is mutated in place and persisted directly, so a long-running
// step observes its own just-written fields without a storage round trip;
// otherwise the record is loaded fresh.
func (s *Store) UpdateRecord(ctx context.Context, workflowID, recordID string, updates map[string]any, live *models.Record) (*models.Record, error) {
	record := live

	if record == nil {
		loaded, err := s.persistence.RecordRepository().Get(ctx, workflowID, recordID)
		if err != nil {
			return nil, fmt.Errorf("failed to load record %s: %w", recordID, err)
		}

		record = loaded
	}

	for path, value := range updates {
		if err := applyUpdate(record, path, value); err != nil {
			return nil, fmt.Errorf("failed to update record %s: %w", recordID, err)
		}
	}

	if err := s.persistence.RecordRepository().Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", recordID, err)
	}

	return record, nil
}

// GetRecord fetches one record by its natural key.
func (s *Store) GetRecord(ctx context.Context, workflowID, recordID string) (*models.Record, error) {
	record, err := s.persistence.RecordRepository().Get(ctx, workflowID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", recordID, err)
	}

	return record, nil
}

// QueryRecords returns the workflow's records matching the filters.
func (s *Store) QueryRecords(ctx context.Context, workflowID string, filters persistence.RecordFilters) ([]*models.Record, error) {
	records, err := s.persistence.RecordRepository().Query(ctx, workflowID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	return records, nil
}

// DeleteRecord removes one record by its natural key.
func (s *Store) DeleteRecord(ctx context.Context, workflowID, recordID string) error {
	if err := s.persistence.RecordRepository().Delete(ctx, workflowID, recordID); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", recordID, err)
	}

	return nil
}

// applyUpdate routes one dot-path update into the record. The first path
// segment selects the data sub-object ("vars", "targets", "fields"),
// "status" sets the lifecycle status, "history" appends, and a bare
// unreserved key lands in data.fields. History is a list, so nested history
// paths are rejected rather than dropped.
func applyUpdate(record *models.Record, path string, value any) error {
	segments := strings.Split(path, ".")
	head := segments[0]

	switch {
	case head == "status" && len(segments) == 1:
		if status, ok := value.(string); ok {
			record.Status = models.RecordStatus(status)
		}
	case head == "history" && len(segments) == 1:
		if entries, ok := value.([]any); ok {
			record.Data.History = entries
		} else {
			record.Data.History = append(record.Data.History, value)
		}
	case head == "history":
		return fmt.Errorf("history entries are append-only, nested path %q is not addressable", path)
	case reservedRecordKeys[head] && len(segments) > 1:
		setNested(record.Data.SubObject(head), segments[1:], value)
	case reservedRecordKeys[head]:
		if nested, ok := value.(map[string]any); ok {
			target := record.Data.SubObject(head)
			for k, v := range nested {
				target[k] = v
			}
		}
	default:
		setNested(record.Data.Fields, segments, value)
	}

	return nil
}

// setNested walks the path inside a sub-object, creating intermediate maps,
// and sets the leaf without disturbing siblings.
func setNested(target map[string]any, segments []string, value any) {
	for _, segment := range segments[:len(segments)-1] {
		next, ok := target[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			target[segment] = next
		}

		target = next
	}

	target[segments[len(segments)-1]] = value
}
