package semantic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
)

func testConfig(t *testing.T) *config.SemanticConfig {
	t.Helper()
	return &config.SemanticConfig{
		MinChunkSize:            5,
		MaxChunkSize:            10000,
		MaxChunksPerFile:        50,
		MaxFileSizeBytes:        1 << 20,
		SimpleSearchThreshold:   0.0,
		CodeSimilarityThreshold: 0.0,
		ExcerptLength:           60,
		ContextLines:            3,
		EmbeddingModel:          "stub",
		DebounceMs:              50,
		DBPath:                  filepath.Join(t.TempDir(), "index.db"),
	}
}

func TestChunk_PythonFunctionsAndImports(t *testing.T) {
	cfg := testConfig(t)
	content := `import os

def greet(name):
    return "hello " + name

class Greeter:
    pass
`
	chunks, err := Chunk("greeter.py", content, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawFunc, sawClass, sawImport bool
	for _, c := range chunks {
		assert.Equal(t, LangPython, c.Language)
		assert.NotEmpty(t, c.ContentHash)
		switch c.ChunkType {
		case ChunkFunction:
			sawFunc = true
		case ChunkClass:
			sawClass = true
		case ChunkImport:
			sawImport = true
		}
	}
	assert.True(t, sawFunc)
	assert.True(t, sawClass)
	assert.True(t, sawImport)
}

func TestChunk_UnknownExtensionFallsBackToPlainText(t *testing.T) {
	cfg := testConfig(t)
	chunks, err := Chunk("notes.txt", "just some plain notes here", cfg)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkPlainText, chunks[0].ChunkType)
	assert.Equal(t, LangUnknown, chunks[0].Language)
}

func TestChunk_RejectsOversizedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxFileSizeBytes = 10
	_, err := Chunk("big.py", "def f():\n    pass\n", cfg)
	require.Error(t, err)
}

func TestChunk_FiltersBySizeAndCapsCount(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinChunkSize = 1000 // nothing will pass
	chunks, err := Chunk("greeter.py", "def f():\n    pass\n", cfg)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	cfg.MinChunkSize = 1
	cfg.MaxChunksPerFile = 1
	chunks, err = Chunk("greeter.py", "def f():\n    pass\n\ndef g():\n    pass\n", cfg)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestStubEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewStubEmbedder(8)
	v1, err := e.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := e.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	var sumSq float64
	for _, x := range v1 {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 0.001)
}

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	cfg := testConfig(t)
	store, err := OpenStore(cfg, NewStubEmbedder(8))
	require.NoError(t, err)
	return NewIndexer(cfg, store, NewStubEmbedder(8))
}

func TestIndexer_IndexFile_StoresChunksAndStats(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def a():\n    return 1\n"), 0o644))

	n, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 1, stats.EmbeddingCount)
}

func TestIndexer_IndexFile_SkipsUnchangedContent(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def a():\n    return 1\n"), 0o644))

	_, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)

	n, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIndexer_IndexFile_ReindexesOnHashChange(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def a():\n    return 1\n"), 0o644))

	_, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("def a():\n    return 2\n\ndef b():\n    return 3\n"), 0o644))
	n, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.FileCount, "reindexing must replace, not duplicate, the file entry")
	assert.Equal(t, 2, stats.ChunkCount, "prior chunks from the old content must be gone")
}

func TestIndexer_RemoveFile_CascadesChunksAndEmbeddings(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def a():\n    return 1\n"), 0o644))

	_, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, ix.RemoveFile(context.Background(), path))
	stats := ix.Stats()
	assert.Equal(t, 0, stats.FileCount)
	assert.Equal(t, 0, stats.ChunkCount)
	assert.Equal(t, 0, stats.EmbeddingCount)
}

func TestStore_SimilaritySearch_ThresholdFiltersAndSortsDescending(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	for i, body := range []string{
		"def alpha():\n    return 'alpha alpha alpha'\n",
		"def beta():\n    return 'totally different text here'\n",
	} {
		path := filepath.Join(dir, string(rune('a'+i))+".py")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := ix.IndexFile(context.Background(), path)
		require.NoError(t, err)
	}

	queryVec, err := NewStubEmbedder(8).EmbedText(context.Background(), "alpha alpha alpha")
	require.NoError(t, err)

	results := ix.store.SimilaritySearch(queryVec, 10, 0.0)
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	none := ix.store.SimilaritySearch(queryVec, 10, 1.1)
	assert.Empty(t, none)
}

func TestExcerpt_CentersOnMatchWithEllipsis(t *testing.T) {
	content := "the quick brown fox jumps over the lazy dog and keeps running far beyond"
	ex := Excerpt(content, "fox", 20, 3)
	assert.Contains(t, ex, "fox")
	assert.Contains(t, ex, "...")
	assert.True(t, len(ex) < len(content))
}

func TestExcerpt_FallsBackToLeadingLinesWithoutMatch(t *testing.T) {
	content := "line one\nline two\nline three\nline four\nline five"
	ex := Excerpt(content, "nowhere to be found", 1000, 2)
	assert.Contains(t, ex, "line one")
	assert.Contains(t, ex, "...")
}

func TestStore_FindSimilarCode_ExcludesReferenceChunk(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def only():\n    return 'unique body text'\n"), 0o644))
	_, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)

	chunks := ix.store.allChunks()
	require.NotEmpty(t, chunks)

	results, err := ix.store.FindSimilarCode(context.Background(), chunks[0].ChunkID, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, chunks[0].ChunkID, r.Chunk.ChunkID)
	}
}

func TestStore_ExplainSearch_ReportsThresholdPass(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("def only():\n    return 'unique body text'\n"), 0o644))
	_, err := ix.IndexFile(context.Background(), path)
	require.NoError(t, err)

	candidates, err := ix.store.ExplainSearch(context.Background(), "unique body text", 2.0)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.False(t, candidates[0].ThresholdPass)
}
