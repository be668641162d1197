package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

// NewRunID generates a monotonic, lexically-sortable WorkflowRunId (spec.md
// GLOSSARY) using UUIDv7, whose leading bits are a millisecond timestamp.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RunStore persists WorkflowRuns, one JSON document per run at
// <base>/runs/<run-id>/run.json (spec.md §4.4).
type RunStore struct {
	baseDir  string
	compress bool
}

// NewRunStore creates a RunStore rooted at cfg.RunsDir().
func NewRunStore(cfg *config.Config) *RunStore {
	return &RunStore{baseDir: cfg.RunsDir(), compress: cfg.Workflow.Compress}
}

func (rs *RunStore) runFile(id string) string {
	return filepath.Join(rs.baseDir, id, "run.json")
}

// StoreRun writes run to its JSON document, creating the run directory.
func (rs *RunStore) StoreRun(run *WorkflowRun) error {
	path := rs.runFile(run.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindIoFailure, run.ID, err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, run.ID, err)
	}
	if rs.compress {
		data, err = compressPayload(data)
		if err != nil {
			return errs.Wrap(errs.KindIoFailure, run.ID, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindIoFailure, run.ID, err)
	}
	return nil
}

// GetRun reads and decodes a run document.
func (rs *RunStore) GetRun(id string) (*WorkflowRun, error) {
	path := rs.runFile(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound(id)
		}
		return nil, errs.Wrap(errs.KindIoFailure, id, err)
	}
	decoded, err := decompressPayload(data)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorruption, id, err)
	}
	var run WorkflowRun
	if err := json.Unmarshal(decoded, &run); err != nil {
		return nil, errs.Wrap(errs.KindCorruption, id, err)
	}
	return &run, nil
}

// ListRuns returns every stored run id.
func (rs *RunStore) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(rs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindIoFailure, rs.baseDir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RemoveRun deletes the run directory.
func (rs *RunStore) RemoveRun(id string) error {
	if err := os.RemoveAll(filepath.Join(rs.baseDir, id)); err != nil {
		return errs.Wrap(errs.KindIoFailure, id, err)
	}
	return nil
}

// ListRunsForWorkflow returns ids of runs whose embedded workflow name
// matches name.
func (rs *RunStore) ListRunsForWorkflow(name string) ([]string, error) {
	ids, err := rs.ListRuns()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		run, err := rs.GetRun(id)
		if err != nil {
			continue
		}
		if run.Workflow.Name == name {
			out = append(out, id)
		}
	}
	return out, nil
}

// CleanupOldRuns removes runs whose StartedAt predates now minus days.
func (rs *RunStore) CleanupOldRuns(days int, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -days)
	ids, err := rs.ListRuns()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		run, err := rs.GetRun(id)
		if err != nil {
			continue
		}
		if run.StartedAt.Before(cutoff) {
			if err := rs.RemoveRun(id); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
