// Package file provides file-based persistence for workflow variables,
// records and node bindings. It is intended for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atypis/runops/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system. All workflow state lives under <root>/<workflowID>/.
type Persistence struct {
	root         string
	mu           sync.Mutex
	variableRepo *VariableRepository
	recordRepo   *RecordRepository
	nodeRepo     *NodeRepository
}

// NewPersistence creates a new instance of Persistence with the specified
// root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	persistence := &Persistence{root: cleanRoot}
	persistence.variableRepo = &VariableRepository{persistence: persistence}
	persistence.recordRepo = &RecordRepository{persistence: persistence}
	persistence.nodeRepo = &NodeRepository{persistence: persistence}

	return persistence
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// VariableRepository returns the variable repository implementation.
func (fp *Persistence) VariableRepository() persistence.VariableRepository {
	return fp.variableRepo
}

// RecordRepository returns the record repository implementation.
func (fp *Persistence) RecordRepository() persistence.RecordRepository {
	return fp.recordRepo
}

// NodeRepository returns the node repository implementation.
func (fp *Persistence) NodeRepository() persistence.NodeRepository {
	return fp.nodeRepo
}

func (fp *Persistence) workflowDir(workflowID string) string {
	return filepath.Join(fp.root, workflowID)
}

// readCollection loads a JSON collection file into dest. A missing file is
// not an error; dest is left untouched.
func (fp *Persistence) readCollection(workflowID, name string, dest any) error {
	path := filepath.Join(fp.workflowDir(workflowID), name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, dest)
	if err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}

func (fp *Persistence) writeCollection(workflowID, name string, src any) error {
	dir := fp.workflowDir(workflowID)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create workflow directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(dir, name)

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// matchPattern reports whether key matches a pattern with '*' wildcards.
// A pattern without wildcards is an exact match.
func matchPattern(pattern, key string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == key
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}

	key = key[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(key, parts[i])
		if idx < 0 {
			return false
		}

		key = key[idx+len(parts[i]):]
	}

	return strings.HasSuffix(key, parts[len(parts)-1])
}
