package semantic

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
)

// Embedder turns chunk text into a fixed-width vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedChunk(ctx context.Context, chunk CodeChunk) (Embedding, error)
	ModelInfo() string
}

// geminiEmbedder wraps the genai SDK's embedding endpoint, constructed the
// same way the teacher's pkg/index/llm.go builds its generation client.
type geminiEmbedder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewEmbedder builds an Embedder from SemanticConfig. Returns an error
// (rather than a nil client, unlike the teacher's NewLLMClient) because an
// unconfigured embedder is never a valid state for the index to run in --
// every caller of NewEmbedder already knows indexing was requested.
func NewEmbedder(cfg *config.SemanticConfig) (Embedder, error) {
	if cfg.EmbeddingAPIKey == "" {
		return nil, errs.InvalidInput("embedding_api_key", "embedding API key not configured")
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.EmbeddingAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "genai client", err)
	}

	return &geminiEmbedder{client: client, model: model, timeout: 30 * time.Second}, nil
}

func (e *geminiEmbedder) ModelInfo() string { return e.model }

func (e *geminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbeddingFailure, "embed_content", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, errs.New(errs.KindEmbeddingFailure, "empty embedding response")
	}
	return result.Embeddings[0].Values, nil
}

func (e *geminiEmbedder) EmbedChunk(ctx context.Context, chunk CodeChunk) (Embedding, error) {
	vec, err := e.EmbedText(ctx, chunk.Content)
	if err != nil {
		return Embedding{}, err
	}
	return Embedding{ChunkID: chunk.ChunkID, Vector: vec}, nil
}

// stubEmbedder produces deterministic low-dimensional vectors from a text's
// byte content without calling any external API, for tests and for
// Engine test-mode style dry runs over the index.
type stubEmbedder struct{ dim int }

// NewStubEmbedder returns an Embedder that never leaves the process.
func NewStubEmbedder(dim int) Embedder {
	if dim <= 0 {
		dim = 8
	}
	return &stubEmbedder{dim: dim}
}

func (s *stubEmbedder) ModelInfo() string { return "stub" }

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dim)
	for i, b := range []byte(text) {
		vec[i%s.dim] += float32(b)
	}
	var sumSq float32
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return vec, nil
	}
	norm := sqrt32(sumSq)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedChunk(ctx context.Context, chunk CodeChunk) (Embedding, error) {
	vec, err := s.EmbedText(ctx, chunk.Content)
	if err != nil {
		return Embedding{}, err
	}
	return Embedding{ChunkID: chunk.ChunkID, Vector: vec}, nil
}
