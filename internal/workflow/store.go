package workflow

import (
	"sort"
	"sync"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/resolver"
)

// Store is the hierarchical WorkflowStore (by name). It implements
// resolver.Target so a Resolver can populate it across the builtin/user/
// local tiers; store_workflow/remove_workflow additionally write through a
// Backend rooted at the user-tier workflows directory. The local tier's
// directory is never written to.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	backend   Backend
}

// New creates a Store whose explicit writes land in cfg.UserWorkflowsDir(),
// optionally compressed per cfg.Workflow.Compress.
func New(cfg *config.Config) *Store {
	var backend Backend = NewFSBackend(cfg.UserWorkflowsDir(), ".mermaid")
	if cfg.Workflow.Compress {
		backend = NewCompressedBackend(backend)
	}
	return &Store{workflows: make(map[string]*Workflow), backend: backend}
}

// Kind implements resolver.Target.
func (s *Store) Kind() resolver.Kind { return resolver.KindWorkflow }

// RecognizedExt implements resolver.Target: only ".mermaid" is recognized
// for workflows (spec.md §4.1).
func (s *Store) RecognizedExt(filename string) bool {
	return len(filename) > len(".mermaid") && filename[len(filename)-len(".mermaid"):] == ".mermaid"
}

// LoadFile implements resolver.Target.
func (s *Store) LoadFile(source resolver.Source, relPath string, data []byte) (string, error) {
	name := resolver.NameFromPath(relPath, []string{".mermaid"})
	w, err := ParseMermaid(name, string(data))
	if err != nil {
		return "", err
	}
	w.Name = name
	s.mu.Lock()
	s.workflows[name] = w
	s.mu.Unlock()
	return name, nil
}

// Get fails NotFound if absent.
func (s *Store) Get(name string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[name]
	if !ok {
		return nil, errs.NotFound(name)
	}
	return w, nil
}

// List returns every loaded workflow, sorted by name.
func (s *Store) List() []*Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StoreWorkflow persists w to the user-tier workflows directory (never to a
// local tier's directory) and updates the in-memory cache.
func (s *Store) StoreWorkflow(w *Workflow) error {
	data := SerializeMermaid(w)
	if err := s.backend.Save(w.Name, []byte(data)); err != nil {
		return err
	}
	s.mu.Lock()
	s.workflows[w.Name] = w
	s.mu.Unlock()
	return nil
}

// RemoveWorkflow deletes the backing file and the cache entry.
func (s *Store) RemoveWorkflow(name string) error {
	if err := s.backend.Delete(name); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.workflows, name)
	s.mu.Unlock()
	return nil
}
