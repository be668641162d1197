package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/logger"
)

// fakeTarget records every LoadFile call it receives, keyed by derived name.
type fakeTarget struct {
	kind    Kind
	exts    []string
	entries map[string]fakeEntry
	failOn  string
}

type fakeEntry struct {
	source Source
	data   string
}

func newFakeTarget(kind Kind, exts ...string) *fakeTarget {
	return &fakeTarget{kind: kind, exts: exts, entries: make(map[string]fakeEntry)}
}

func (f *fakeTarget) Kind() Kind { return f.kind }

func (f *fakeTarget) RecognizedExt(filename string) bool {
	for _, ext := range f.exts {
		if len(filename) >= len(ext) && filename[len(filename)-len(ext):] == ext {
			return true
		}
	}
	return false
}

func (f *fakeTarget) LoadFile(source Source, relPath string, data []byte) (string, error) {
	name := NameFromPath(relPath, f.exts)
	if name == f.failOn {
		return "", assert.AnError
	}
	f.entries[name] = fakeEntry{source: source, data: string(data)}
	return name, nil
}

func TestLoadAll_BuiltinOnly(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = tmp

	r := New(logger.GetLogger())
	target := newFakeTarget(KindPrompt, ".md")

	require.NoError(t, r.LoadAll(cfg, target))

	_, ok := target.entries["say-hello"]
	assert.True(t, ok, "builtin say-hello prompt should load")
	src, ok := r.SourceOf("say-hello")
	require.True(t, ok)
	assert.Equal(t, SourceBuiltin, src)
}

func TestLoadAll_UserOverridesBuiltin(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userDir := filepath.Join(home, ".swissarmyhammer", "prompts")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "say-hello.md"), []byte("overridden"), 0o644))

	cfg := config.DefaultConfig()

	r := New(logger.GetLogger())
	target := newFakeTarget(KindPrompt, ".md")

	require.NoError(t, r.LoadAll(cfg, target))

	entry, ok := target.entries["say-hello"]
	require.True(t, ok)
	assert.Equal(t, "overridden", entry.data)
	src, _ := r.SourceOf("say-hello")
	assert.Equal(t, SourceUser, src)
}

func TestLoadAll_LocalOverridesUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userDir := filepath.Join(home, ".swissarmyhammer", "prompts")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "greet.md"), []byte("user version"), 0o644))

	project := t.TempDir()
	localDir := filepath.Join(project, ".swissarmyhammer", "prompts")
	require.NoError(t, os.MkdirAll(localDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "greet.md"), []byte("local version"), 0o644))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(project))

	cfg := config.DefaultConfig()
	r := New(logger.GetLogger())
	target := newFakeTarget(KindPrompt, ".md")

	require.NoError(t, r.LoadAll(cfg, target))

	entry, ok := target.entries["greet"]
	require.True(t, ok)
	assert.Equal(t, "local version", entry.data)
	src, _ := r.SourceOf("greet")
	assert.Equal(t, SourceLocal, src)
}

func TestLoadAll_SkipsUnparseableAndUnrecognizedFiles(t *testing.T) {
	project := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	localDir := filepath.Join(project, ".swissarmyhammer", "prompts")
	require.NoError(t, os.MkdirAll(localDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "bad.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "good.md"), []byte("y"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(localDir, "ignored.txt"), []byte("z"), 0o644))

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(project))

	cfg := config.DefaultConfig()
	r := New(logger.GetLogger())
	target := newFakeTarget(KindPrompt, ".md")
	target.failOn = "bad"

	require.NoError(t, r.LoadAll(cfg, target))

	_, badLoaded := target.entries["bad"]
	assert.False(t, badLoaded)
	_, goodLoaded := target.entries["good"]
	assert.True(t, goodLoaded)
	_, txtLoaded := target.entries["ignored"]
	assert.False(t, txtLoaded)
}

func TestNameFromPath_StripsNestedExtensions(t *testing.T) {
	assert.Equal(t, "a/b/c", NameFromPath("a/b/c.md", []string{".md"}))
	assert.Equal(t, "workflow", NameFromPath("workflow.mermaid", []string{".mermaid"}))
	assert.Equal(t, "a/b/c", NameFromPath("a/b/c.md.liquid", []string{".md", ".liquid"}))
}
