package semantic

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

// Indexer runs the three-stage pipeline of spec.md §4.6: parse a file into
// chunks, embed each chunk, store the result. IndexFile is hash-gated --
// a file whose content hash matches what's already recorded is skipped
// entirely.
type Indexer struct {
	cfg      *config.SemanticConfig
	store    *Store
	embedder Embedder
}

// NewIndexer builds an Indexer over an already-open Store.
func NewIndexer(cfg *config.SemanticConfig, store *Store, embedder Embedder) *Indexer {
	return &Indexer{cfg: cfg, store: store, embedder: embedder}
}

// IndexFile reads path, and if its content hash differs from the last
// indexed hash (or it was never indexed), parses, embeds, and stores it.
// Returns the number of chunks stored, or 0 with no error if the file was
// skipped as unchanged.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errs.Wrap(errs.KindIoFailure, path, err)
	}
	content := string(data)
	hash := hashContent(content)

	if !ix.store.NeedsReindexing(path, hash) {
		return 0, nil
	}

	chunks, err := Chunk(path, content, ix.cfg)
	if err != nil {
		return 0, err
	}

	embeddings := make([]Embedding, 0, len(chunks))
	for _, c := range chunks {
		e, err := ix.embedder.EmbedChunk(ctx, c)
		if err != nil {
			return 0, err
		}
		embeddings = append(embeddings, e)
	}

	file := IndexedFile{
		Path:        path,
		Language:    DetectLanguage(path),
		ContentHash: hash,
	}
	if err := ix.store.StoreChunksAndEmbeddingsTransaction(ctx, file, chunks, embeddings); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IndexDirectory walks root, indexing every file whose extension is
// recognized by the grammar registry. Returns the total chunk count stored
// across all (re)indexed files; a single file's error does not abort the
// walk, so one bad file doesn't block indexing the rest of the tree.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) (int, []error) {
	var total int
	var errsOut []error

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			errsOut = append(errsOut, err)
			return nil
		}
		if info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			if shouldSkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !watchedExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		n, err := ix.IndexFile(ctx, path)
		if err != nil {
			errsOut = append(errsOut, err)
			return nil
		}
		total += n
		return nil
	})

	return total, errsOut
}

// RemoveFile removes a file's chunks and embeddings from the store.
func (ix *Indexer) RemoveFile(ctx context.Context, path string) error {
	return ix.store.RemoveFile(ctx, path)
}

// Stats returns the store's current index stats.
func (ix *Indexer) Stats() IndexStats {
	return ix.store.GetIndexStats()
}
