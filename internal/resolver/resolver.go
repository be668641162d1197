// Package resolver implements the three-tier precedence loader (spec.md §4.1,
// component C1) shared identically by the prompt library and the workflow
// store. It walks builtin < user < local tiers, handing recognized files to
// a Target and recording which tier last supplied each name.
package resolver

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/fileutil"
)

// Kind distinguishes the two resolver consumers.
type Kind string

const (
	KindPrompt   Kind = "prompts"
	KindWorkflow Kind = "workflows"
)

// Source identifies which tier last supplied an entity.
type Source string

const (
	SourceBuiltin Source = "builtin"
	SourceUser    Source = "user"
	SourceLocal   Source = "local"
	SourceDynamic Source = "dynamic"
)

// maxWalkDepth bounds the upward directory walk used for local discovery; it
// is a security limit against runaway traversal on pathological filesystems.
const maxWalkDepth = 64

// Target is implemented by whatever store the resolver is loading into
// (prompts.Library or workflow.Store). LoadFile derives the entity's name
// from relPath and the exact rules of that consumer's extension set, then
// stores or replaces it; the resolver itself stays ignorant of name
// derivation so both consumers can apply their own rules.
type Target interface {
	// Kind identifies which directory name ("prompts" or "workflows") this
	// target loads from.
	Kind() Kind
	// RecognizedExt reports whether filename has an extension this target
	// understands.
	RecognizedExt(filename string) bool
	// LoadFile parses data and stores/replaces the resulting entity. It
	// returns the derived name for source-tracking, or an error that does not
	// abort the walk (the resolver logs and continues).
	LoadFile(source Source, relPath string, data []byte) (name string, err error)
}

// Resolver owns only transient source-of-origin metadata (per spec.md §3
// Ownership); it holds no other mutable state once a load completes.
type Resolver struct {
	mu      sync.RWMutex
	sources map[string]Source
	log     arbor.ILogger
}

// New creates a Resolver.
func New(log arbor.ILogger) *Resolver {
	return &Resolver{sources: make(map[string]Source), log: log}
}

// SourceOf returns the tier that last supplied name, and whether it is known.
func (r *Resolver) SourceOf(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Sources returns a snapshot of every recorded name->source mapping.
func (r *Resolver) Sources() map[string]Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Source, len(r.sources))
	for k, v := range r.sources {
		out[k] = v
	}
	return out
}

func (r *Resolver) record(name string, source Source) {
	r.mu.Lock()
	r.sources[name] = source
	r.mu.Unlock()
}

// LoadAll populates target by loading, strictly in this order: (1) builtin,
// (2) user ($HOME/.swissarmyhammer/<kind>/), (3) local (directories
// discovered by walking from cwd toward the root). Calling LoadAll again
// fully replaces prior source-attribution data.
func (r *Resolver) LoadAll(cfg *config.Config, target Target) error {
	r.mu.Lock()
	r.sources = make(map[string]Source)
	r.mu.Unlock()

	if err := r.loadBuiltin(target); err != nil {
		return err
	}
	if err := r.loadUser(cfg, target); err != nil {
		return err
	}
	if err := r.loadLocal(cfg, target); err != nil {
		return err
	}
	return nil
}

func (r *Resolver) loadBuiltin(target Target) error {
	root := "builtin/" + string(target.Kind())
	entries, err := fs.ReadDir(builtinFS, root)
	if err != nil {
		// No builtin directory for this kind is not an error: spec.md's open
		// question treats builtin contribution to either kind as optional.
		return nil
	}
	for _, e := range entries {
		if e.IsDir() || !target.RecognizedExt(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(builtinFS, root+"/"+e.Name())
		if err != nil {
			r.log.Debug().Err(err).Str("file", e.Name()).Msg("skipping unreadable builtin file")
			continue
		}
		name, err := target.LoadFile(SourceBuiltin, e.Name(), data)
		if err != nil {
			r.log.Debug().Err(err).Str("file", e.Name()).Msg("skipping unparseable builtin file")
			continue
		}
		r.record(name, SourceBuiltin)
	}
	return nil
}

func (r *Resolver) loadUser(cfg *config.Config, target Target) error {
	var dir string
	switch target.Kind() {
	case KindPrompt:
		dir = cfg.UserPromptsDir()
	case KindWorkflow:
		dir = cfg.UserWorkflowsDir()
	}
	return r.loadDirectory(dir, SourceUser, target)
}

func (r *Resolver) loadLocal(cfg *config.Config, target Target) error {
	dirs, err := r.discoverLocalDirs(target.Kind())
	if err != nil {
		return err
	}
	// Root-most first, current-dir last, so deeper paths override shallower.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := r.loadDirectory(dirs[i], SourceLocal, target); err != nil {
			return err
		}
	}
	return nil
}

// discoverLocalDirs walks from the current working directory up toward the
// filesystem root, up to maxWalkDepth, collecting sibling
// ".swissarmyhammer/<kind>" directories. The user's home directory is
// skipped to avoid double-loading it as both "user" and "local".
func (r *Resolver) discoverLocalDirs(kind Kind) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, "cwd", err)
	}

	home, _ := os.UserHomeDir()
	homeClean := filepath.Clean(home)

	var dirs []string
	current := cwd
	for depth := 0; depth < maxWalkDepth; depth++ {
		candidate := filepath.Join(current, ".swissarmyhammer", string(kind))
		if filepath.Clean(current) != homeClean && fileutil.IsDir(candidate) {
			dirs = append(dirs, candidate)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dirs, nil
		}
		current = parent
	}

	return nil, errs.Newf(errs.KindLimitExceeded, "directory_depth", "exceeded max walk depth of %d", maxWalkDepth)
}

func (r *Resolver) loadDirectory(dir string, source Source, target Target) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindIoFailure, dir, err)
	}
	if !info.IsDir() {
		return nil
	}

	var paths []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if target.RecognizedExt(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return errs.Wrap(errs.KindIoFailure, dir, walkErr)
	}

	sort.Strings(paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Debug().Err(err).Str("path", path).Msg("skipping unreadable file")
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		name, err := target.LoadFile(source, rel, data)
		if err != nil {
			r.log.Debug().Err(err).Str("path", path).Msg("skipping unparseable file")
			continue
		}
		r.record(name, source)
	}
	return nil
}

// StripExtensions strips any suffix matching ext (case-insensitively),
// including compound variants like ".md.liquid", returning the path with all
// recognized extension segments removed from its tail.
func StripExtensions(name string, exts []string) string {
	lower := strings.ToLower(name)
	for {
		stripped := false
		for _, ext := range exts {
			e := strings.ToLower(ext)
			if strings.HasSuffix(lower, e) {
				name = name[:len(name)-len(e)]
				lower = lower[:len(lower)-len(e)]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return name
}

// NameFromPath derives a prompt/workflow name from a path relative to its
// source directory: path components joined by "/", extension stripped.
func NameFromPath(relPath string, exts []string) string {
	stripped := StripExtensions(relPath, exts)
	return filepath.ToSlash(stripped)
}
