// Package file provides file-based persistence implementation for workflow definitions and issues.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/issueflow/pkg/persistence"
)

const (
	workflowsDir = "workflows"
	issuesDir    = "issues"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	mu           sync.RWMutex
	workflowRepo *WorkflowRepository
	issueRepo    *IssueRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	fp := &Persistence{root: cleanRoot}
	fp.workflowRepo = &WorkflowRepository{store: fp}
	fp.issueRepo = &IssueRepository{store: fp}

	return fp
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// WorkflowRepository returns the workflow repository implementation for file persistence.
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// IssueRepository returns the issue repository implementation for file persistence.
func (fp *Persistence) IssueRepository() persistence.IssueRepository {
	return fp.issueRepo
}

func (fp *Persistence) path(dir, id string) string {
	return filepath.Join(fp.root, dir, filepath.Base(id)+".json")
}

// readJSON decodes the document stored under dir/id. It returns fs.ErrNotExist
// when there is no such document.
func (fp *Persistence) readJSON(dir, id string, into any) error {
	body, err := os.ReadFile(fp.path(dir, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

// writeJSON replaces the document under dir/id atomically: readers see the
// old or the new content, never a partial file.
func (fp *Persistence) writeJSON(dir, id string, value any) error {
	target := filepath.Join(fp.root, dir)

	if err := os.MkdirAll(target, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	tmp, err := os.CreateTemp(target, "."+filepath.Base(id)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s/%s: %w", dir, id, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s/%s: %w", dir, id, err)
	}

	return os.Rename(tmp.Name(), fp.path(dir, id))
}

// ids lists the document ids stored in dir.
func (fp *Persistence) ids(dir string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(fp.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
