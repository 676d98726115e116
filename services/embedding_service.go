package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
)

// Embedder turns text into vectors. It matches langchaingo's
// embeddings.Embedder so any of its providers can be plugged in.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService wraps a provider embedder. It checks every vector against
// the index dimension, caches query vectors and reports failures as
// UpstreamServiceError.
type EmbeddingService struct {
	impl      embeddings.Embedder
	dimension int

	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

// NewEmbeddingService wraps impl. A cacheSize of zero disables the query cache.
func NewEmbeddingService(impl embeddings.Embedder, dimension, cacheSize int) (*EmbeddingService, error) {
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if dimension <= 0 {
		return nil, errors.New("embedder dimension must be greater than zero")
	}
	s := &EmbeddingService{impl: impl, dimension: dimension}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// NewEmbedderFromConfig builds the langchaingo embedder for cfg.Provider.
func NewEmbedderFromConfig(cfg config.EmbedderConfig, dimension int) (*EmbeddingService, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama embedder: %w", err)
		}
		client = llm
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
	impl, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewEmbeddingService(impl, dimension, cfg.CacheSize)
}

func (s *EmbeddingService) Dimension() int { return s.dimension }

func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := s.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &UpstreamServiceError{Service: "embedding", Op: "embed documents", Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &UpstreamServiceError{
			Service: "embedding",
			Op:      "embed documents",
			Err:     fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)),
		}
	}
	for i, v := range vectors {
		if err := s.checkDimension(v); err != nil {
			return nil, &UpstreamServiceError{Service: "embedding", Op: fmt.Sprintf("embed document %d", i), Err: err}
		}
	}
	return vectors, nil
}

func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.lookup(text); ok {
		return v, nil
	}
	vector, err := s.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &UpstreamServiceError{Service: "embedding", Op: "embed query", Err: err}
	}
	if err := s.checkDimension(vector); err != nil {
		return nil, &UpstreamServiceError{Service: "embedding", Op: "embed query", Err: err}
	}
	s.store(text, vector)
	return vector, nil
}

func (s *EmbeddingService) checkDimension(v []float32) error {
	if len(v) != s.dimension {
		return fmt.Errorf("embedding has dimension %d, expected %d", len(v), s.dimension)
	}
	return nil
}

func (s *EmbeddingService) lookup(text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	v, ok := s.cache.Get(text)
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

func (s *EmbeddingService) store(text string, v []float32) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Add(text, cloneVector(v))
	s.cacheMu.Unlock()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
