package semantic

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

// Store is the persistence layer for C6: indexed-file bookkeeping, chunk
// bodies, and embeddings, plus a chromem-go collection that receives every
// stored chunk with its embedding and drops a removed file's chunks. Every
// query (similarity_search and the search_simple, find_similar_code and
// multi_query_search wrappers over it) is served from our own embeddings map
// rather than read back out of chromem, since chromem-go exposes no
// documented way to recover a stored document's raw vector once written.
type Store struct {
	cfg *config.SemanticConfig

	mu     sync.RWMutex
	files  map[string]*IndexedFile
	chunks map[string]*CodeChunk
	embeds map[string][]float32

	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
}

// onDiskState is the JSON envelope persisted at cfg.DBPath + ".json", the
// sidecar our own bookkeeping lives in independent of chromem's on-disk
// format.
type onDiskState struct {
	Files  map[string]*IndexedFile `json:"files"`
	Chunks map[string]*CodeChunk   `json:"chunks"`
	Embeds map[string][]float32    `json:"embeddings"`
}

// OpenStore loads or creates the index at cfg.DBPath.
func OpenStore(cfg *config.SemanticConfig, embedder Embedder) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, cfg.DBPath, err)
	}

	db, err := chromem.NewPersistentDB(cfg.DBPath, false)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, cfg.DBPath, err)
	}
	coll, err := db.GetOrCreateCollection("semantic_index", nil, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindIoFailure, "semantic_index collection", err)
	}

	s := &Store{
		cfg:        cfg,
		files:      map[string]*IndexedFile{},
		chunks:     map[string]*CodeChunk{},
		embeds:     map[string][]float32{},
		db:         db,
		collection: coll,
		embedder:   embedder,
	}
	if err := s.loadSidecar(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) sidecarPath() string { return s.cfg.DBPath + ".json" }

func (s *Store) loadSidecar() error {
	data, err := os.ReadFile(s.sidecarPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, s.sidecarPath(), err)
	}
	var state onDiskState
	if err := json.Unmarshal(data, &state); err != nil {
		return errs.Wrap(errs.KindCorruption, s.sidecarPath(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Files != nil {
		s.files = state.Files
	}
	if state.Chunks != nil {
		s.chunks = state.Chunks
	}
	if state.Embeds != nil {
		s.embeds = state.Embeds
	}
	return nil
}

// persistSidecar must be called with s.mu held.
func (s *Store) persistSidecar() error {
	state := onDiskState{Files: s.files, Chunks: s.chunks, Embeds: s.embeds}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindIoFailure, s.sidecarPath(), err)
	}
	tmp := s.sidecarPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.KindIoFailure, tmp, err)
	}
	return os.Rename(tmp, s.sidecarPath())
}

// NeedsReindexing reports whether path has no recorded hash, or a hash that
// differs from contentHash (spec.md §4.6.3).
func (s *Store) NeedsReindexing(path, contentHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[path]
	return !ok || rec.ContentHash != contentHash
}

// StoreChunksAndEmbeddingsTransaction validates every chunk has a matching
// embedding (and vice versa) before writing anything, then replaces all
// prior chunks/embeddings for file.Path with the new set in one step --
// the two-phase validate-then-mutate idiom used throughout this module.
func (s *Store) StoreChunksAndEmbeddingsTransaction(ctx context.Context, file IndexedFile, chunks []CodeChunk, embeddings []Embedding) error {
	byChunk := make(map[string]Embedding, len(embeddings))
	for _, e := range embeddings {
		byChunk[e.ChunkID] = e
	}
	for _, c := range chunks {
		if _, ok := byChunk[c.ChunkID]; !ok {
			return errs.InvalidInput(c.ChunkID, "chunk has no matching embedding")
		}
	}
	if len(embeddings) != len(chunks) {
		return errs.InvalidInput(file.Path, "embedding count does not match chunk count")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.files[file.Path]; ok {
		for _, id := range prior.ChunkIDs {
			delete(s.chunks, id)
			delete(s.embeds, id)
		}
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		cc := c
		s.chunks[c.ChunkID] = &cc
		s.embeds[c.ChunkID] = byChunk[c.ChunkID].Vector
		ids = append(ids, c.ChunkID)

		if err := s.upsertCollection(ctx, cc, byChunk[c.ChunkID].Vector); err != nil {
			return err
		}
	}

	file.ChunkCount = len(ids)
	file.ChunkIDs = ids
	file.IndexedAt = time.Now()
	s.files[file.Path] = &file

	return s.persistSidecar()
}

// upsertCollection passes the chunk's own embedding, so chromem never calls
// the collection's embedding function.
func (s *Store) upsertCollection(ctx context.Context, c CodeChunk, vec []float32) error {
	return s.collection.AddDocument(ctx, chromem.Document{
		ID:        c.ChunkID,
		Content:   c.Content,
		Embedding: vec,
		Metadata: map[string]string{
			"file_path":  c.FilePath,
			"language":   string(c.Language),
			"chunk_type": string(c.ChunkType),
		},
	})
}

// RemoveFile deletes a file's IndexedFile record and cascades to its chunks
// and embeddings, including the chromem collection entries.
func (s *Store) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.files[path]
	if !ok {
		return errs.NotFound(path)
	}
	for _, id := range rec.ChunkIDs {
		delete(s.chunks, id)
		delete(s.embeds, id)
	}
	delete(s.files, path)

	if len(rec.ChunkIDs) > 0 {
		if err := s.collection.Delete(ctx, nil, nil, rec.ChunkIDs...); err != nil {
			return errs.Wrap(errs.KindIoFailure, path, err)
		}
	}
	return s.persistSidecar()
}

// GetIndexStats summarizes the index's current contents (spec.md §4.6.4).
func (s *Store) GetIndexStats() IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := IndexStats{
		FileCount:      len(s.files),
		ChunkCount:     len(s.chunks),
		EmbeddingCount: len(s.embeds),
	}
	for _, f := range s.files {
		if f.IndexedAt.After(stats.LastIndexedAt) {
			stats.LastIndexedAt = f.IndexedAt
		}
	}
	return stats
}

// chunkByID, allChunks and allEmbeddings are read helpers shared with
// search.go.
func (s *Store) chunkByID(id string) (CodeChunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return CodeChunk{}, false
	}
	return *c, true
}

func (s *Store) allChunks() []CodeChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CodeChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, *c)
	}
	return out
}

func (s *Store) allEmbeddings() map[string][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float32, len(s.embeds))
	for id, v := range s.embeds {
		out[id] = v
	}
	return out
}
