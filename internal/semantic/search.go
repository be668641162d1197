package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/logger"
)

func sqrt32(x float32) float32 { return float32(math.Sqrt(float64(x))) }

func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// SimilaritySearch implements the literal similarity_search(query_vec, limit,
// threshold) contract of spec.md §4.6.4: cosine similarity against every
// stored embedding, descending sort, truncated to limit. A chunk whose
// embedding dimension doesn't match the query (a corrupted or stale row) is
// logged and skipped rather than aborting the whole query.
func (s *Store) SimilaritySearch(queryVec []float32, limit int, threshold float64) []SearchResult {
	type scored struct {
		chunk CodeChunk
		score float64
	}
	var candidates []scored

	for id, vec := range s.allEmbeddings() {
		sim, ok := cosineSimilarity(queryVec, vec)
		if !ok {
			logger.GetLogger().Warn().Msg(fmt.Sprintf("semantic: skipping corrupted embedding for chunk %s", id))
			continue
		}
		if sim < threshold {
			continue
		}
		chunk, ok := s.chunkByID(id)
		if !ok {
			continue
		}
		candidates = append(candidates, scored{chunk: chunk, score: sim})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, SearchResult{
			Chunk:      c.chunk,
			Similarity: c.score,
			Excerpt:    Excerpt(c.chunk.Content, "", s.cfg.ExcerptLength, s.cfg.ContextLines),
		})
	}
	return out
}

// Excerpt builds a human-scannable preview of content, per spec.md §4.6.4 and
// SPEC_FULL.md §C.4: if query appears in content, center a window of
// maxLen bytes around the first match, snapped outward to word boundaries;
// otherwise return the first contextLines lines. Elided ends are marked
// with "...".
func Excerpt(content, query string, maxLen, contextLines int) string {
	if query != "" {
		if idx := strings.Index(strings.ToLower(content), strings.ToLower(query)); idx >= 0 {
			return centeredExcerpt(content, idx, len(query), maxLen)
		}
	}
	lines := strings.Split(content, "\n")
	if contextLines <= 0 || contextLines >= len(lines) {
		return content
	}
	head := strings.Join(lines[:contextLines], "\n")
	return head + "\n..."
}

func centeredExcerpt(content string, matchStart, matchLen, maxLen int) string {
	if maxLen <= 0 || maxLen >= len(content) {
		return content
	}
	half := (maxLen - matchLen) / 2
	start := matchStart - half
	end := matchStart + matchLen + half
	if start < 0 {
		end -= start
		start = 0
	}
	if end > len(content) {
		start -= end - len(content)
		end = len(content)
	}
	if start < 0 {
		start = 0
	}

	for start > 0 && !isWordBoundary(content, start) {
		start--
	}
	for end < len(content) && !isWordBoundary(content, end) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(content[start:end])
	if end < len(content) {
		b.WriteString("...")
	}
	return b.String()
}

func isWordBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	return !isWordByte(s[i-1]) || !isWordByte(s[i])
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// SearchSimple embeds query text and runs SimilaritySearch against the
// simple-search threshold from config.
func (s *Store) SearchSimple(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SimilaritySearch(vec, limit, s.cfg.SimpleSearchThreshold), nil
}

// SearchByLanguage restricts SearchSimple's results to a single language.
func (s *Store) SearchByLanguage(ctx context.Context, query string, lang Language, limit int) ([]SearchResult, error) {
	results, err := s.SearchSimple(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	var out []SearchResult
	for _, r := range results {
		if r.Chunk.Language == lang {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// FindSimilarCode re-embeds a reference chunk's own content as the query and
// excludes that chunk from its own results.
func (s *Store) FindSimilarCode(ctx context.Context, referenceChunkID string, limit int) ([]SearchResult, error) {
	ref, ok := s.chunkByID(referenceChunkID)
	if !ok {
		return nil, errs.NotFound(referenceChunkID)
	}
	vec, err := s.embedder.EmbedText(ctx, ref.Content)
	if err != nil {
		return nil, err
	}
	results := s.SimilaritySearch(vec, 0, s.cfg.CodeSimilarityThreshold)

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Chunk.ChunkID == referenceChunkID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MultiQuerySearch runs SimilaritySearch once per query and unions the
// results, keeping the highest score seen for any chunk id that recurs
// across queries.
func (s *Store) MultiQuerySearch(ctx context.Context, queries []string, limit int, threshold float64) ([]SearchResult, error) {
	best := map[string]SearchResult{}
	for _, q := range queries {
		vec, err := s.embedder.EmbedText(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, r := range s.SimilaritySearch(vec, 0, threshold) {
			if prior, ok := best[r.Chunk.ChunkID]; !ok || r.Similarity > prior.Similarity {
				best[r.Chunk.ChunkID] = r
			}
		}
	}

	out := make([]SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExplainSearch returns a per-candidate diagnostic row for every stored
// chunk against query, regardless of threshold, so a caller can see why a
// chunk was or wasn't included. Chunks whose embedding cannot be compared
// with the query vector get no row.
func (s *Store) ExplainSearch(ctx context.Context, query string, threshold float64) ([]ExplainCandidate, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	var out []ExplainCandidate
	for id, stored := range s.allEmbeddings() {
		sim, ok := cosineSimilarity(vec, stored)
		chunk, found := s.chunkByID(id)
		if !ok || !found {
			continue
		}
		preview := chunk.Content
		if len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		out = append(out, ExplainCandidate{
			ChunkID:        chunk.ChunkID,
			FilePath:       chunk.FilePath,
			Language:       chunk.Language,
			Score:          sim,
			ThresholdPass:  sim >= threshold,
			ContentPreview: preview,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
