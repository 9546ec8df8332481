package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atypis/runops/pkg/models"
	"github.com/atypis/runops/pkg/persistence"
)

func TestVariableRepositorySearchWildcards(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	repo := p.VariableRepository()

	keys := []string{"items", "row@iter:2:name", "row@iter:2:price", "row@iter:12:name"}
	for _, key := range keys {
		require.NoError(t, repo.Upsert(ctx, &models.Variable{WorkflowID: "wf-1", Key: key, Value: key}))
	}

	tests := []struct {
		pattern  string
		expected []string
	}{
		{pattern: "items", expected: []string{"items"}},
		{pattern: "*@iter:2:*", expected: []string{"row@iter:2:name", "row@iter:2:price"}},
		{pattern: "*@iter:12:*", expected: []string{"row@iter:12:name"}},
		{pattern: "*", expected: []string{"items", "row@iter:12:name", "row@iter:2:name", "row@iter:2:price"}},
		{pattern: "missing*", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			matches, err := repo.Search(ctx, "wf-1", tt.pattern)
			require.NoError(t, err)

			found := make([]string, 0, len(matches))
			for _, variable := range matches {
				found = append(found, variable.Key)
			}

			assert.Equal(t, tt.expected, found)
		})
	}
}

func TestVariableRepositoryUpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	repo := p.VariableRepository()

	require.NoError(t, repo.Upsert(ctx, &models.Variable{WorkflowID: "wf-1", Key: "k", Value: 1}))

	first, err := repo.Get(ctx, "wf-1", "k")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, &models.Variable{WorkflowID: "wf-1", Key: "k", Value: 2}))

	second, err := repo.Get(ctx, "wf-1", "k")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestRecordRepositoryQueryFilters(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	repo := p.RecordRepository()

	records := []*models.Record{
		{WorkflowID: "wf-1", RecordID: "rec-1", RecordType: "lead", Status: models.RecordStatusPending, Data: models.NewRecordData()},
		{WorkflowID: "wf-1", RecordID: "rec-2", RecordType: "lead", Status: models.RecordStatusCompleted, Data: models.NewRecordData()},
		{WorkflowID: "wf-1", RecordID: "rec-3", RecordType: "order", Status: models.RecordStatusPending, Data: models.NewRecordData()},
	}
	for _, record := range records {
		require.NoError(t, repo.Upsert(ctx, record))
	}

	leads, err := repo.Query(ctx, "wf-1", persistence.RecordFilters{RecordType: "lead"})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	pending, err := repo.Query(ctx, "wf-1", persistence.RecordFilters{Status: models.RecordStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	both, err := repo.Query(ctx, "wf-1", persistence.RecordFilters{RecordType: "lead", Status: models.RecordStatusPending})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "rec-1", both[0].RecordID)
}

func TestNodeRepositoryListIterateBindings(t *testing.T) {
	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	repo := p.NodeRepository()

	nodes := []*models.WorkflowNode{
		{WorkflowID: "wf-1", ID: "n-3", Type: models.NodeTypeIterate, Position: 3, Alias: "later", Config: map[string]any{"over": "{{rows}}"}, Enabled: true},
		{WorkflowID: "wf-1", ID: "n-1", Type: models.NodeTypeIterate, Position: 1, Alias: "earlier", Config: map[string]any{"over": "state.items"}, Enabled: true},
		{WorkflowID: "wf-1", ID: "n-2", Type: "click", Position: 2, Enabled: true},
	}
	for _, node := range nodes {
		require.NoError(t, repo.SaveNode(ctx, node))
	}

	bindings, err := repo.ListIterateBindings(ctx, "wf-1")
	require.NoError(t, err)

	require.Len(t, bindings, 2)
	assert.Equal(t, 1, bindings[0].Position)
	assert.Equal(t, "state.items", bindings[0].Over)
	assert.Equal(t, 3, bindings[1].Position)
}
