package file

import (
	"context"
	"sort"
	"time"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

const recordsFile = "records.json"

// RecordRepository is the file-backed record store.
type RecordRepository struct {
	persistence *Persistence
}

func (r *RecordRepository) load(workflowID string) (map[string]*models.Record, error) {
	records := make(map[string]*models.Record)

	err := r.persistence.readCollection(workflowID, recordsFile, &records)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *RecordRepository) Get(ctx context.Context, workflowID, recordID string) (*models.Record, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	records, err := r.load(workflowID)
	if err != nil {
		return nil, err
	}

	record, exists := records[recordID]
	if !exists {
		return nil, persistence.NewRecordError("Get", workflowID, recordID, persistence.ErrRecordNotFound)
	}

	return record, nil
}

func (r *RecordRepository) Upsert(ctx context.Context, record *models.Record) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	records, err := r.load(record.WorkflowID)
	if err != nil {
		return persistence.NewRecordError("Upsert", record.WorkflowID, record.RecordID, err)
	}

	now := time.Now().UTC()

	if existing, exists := records[record.RecordID]; exists {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now
	records[record.RecordID] = record

	err = r.persistence.writeCollection(record.WorkflowID, recordsFile, records)
	if err != nil {
		return persistence.NewRecordError("Upsert", record.WorkflowID, record.RecordID, err)
	}

	return nil
}

func (r *RecordRepository) Query(ctx context.Context, workflowID string, filters persistence.RecordFilters) ([]*models.Record, error) {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	records, err := r.load(workflowID)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Record, 0)

	for _, record := range records {
		if filters.RecordType != "" && record.RecordType != filters.RecordType {
			continue
		}

		if filters.Status != "" && record.Status != filters.Status {
			continue
		}

		if filters.IterationNodeAlias != "" && record.IterationNodeAlias != filters.IterationNodeAlias {
			continue
		}

		matches = append(matches, record)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	return matches, nil
}

func (r *RecordRepository) Delete(ctx context.Context, workflowID, recordID string) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	records, err := r.load(workflowID)
	if err != nil {
		return persistence.NewRecordError("Delete", workflowID, recordID, err)
	}

	delete(records, recordID)

	err = r.persistence.writeCollection(workflowID, recordsFile, records)
	if err != nil {
		return persistence.NewRecordError("Delete", workflowID, recordID, err)
	}

	return nil
}
