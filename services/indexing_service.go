package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/vectorstore"
)

// IndexBuilder turns the corpus into index entries.
type IndexBuilder interface {
	// BuildIndex is a no-op when the index already has entries and force is
	// false. Otherwise it replaces the index contents atomically; any failure
	// leaves the previous contents in place.
	BuildIndex(ctx context.Context, force bool) (models.IndexStats, error)
}

// IndexingOptions tunes the embedding fan-out of a build.
type IndexingOptions struct {
	BatchSize    int
	Concurrency  int
	BatchTimeout time.Duration
}

type indexingService struct {
	loader   CorpusLoader
	chunker  Chunker
	embedder Embedder
	index    vectorstore.Index
	opts     IndexingOptions
}

func NewIndexingService(loader CorpusLoader, chunker Chunker, embedder Embedder, index vectorstore.Index, opts IndexingOptions) IndexBuilder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &indexingService{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		opts:     opts,
	}
}

func (s *indexingService) BuildIndex(ctx context.Context, force bool) (models.IndexStats, error) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	count, err := s.index.Count(ctx)
	if err != nil {
		return models.IndexStats{}, &IndexBuildError{Stage: "count", Err: err}
	}
	if count > 0 && !force {
		logger.Info().Int("entries", count).Msg("INDEXER: index already populated, skipping build")
		return models.IndexStats{Entries: count, Skipped: true, Duration: time.Since(start)}, nil
	}

	docs, err := s.loader.Load(ctx)
	if err != nil {
		return models.IndexStats{}, &IndexBuildError{Stage: "load", Err: err}
	}
	if len(docs) == 0 {
		logger.Warn().Msg("INDEXER: corpus is empty, the index will have no entries")
	}

	chunks, err := s.chunkAll(docs)
	if err != nil {
		return models.IndexStats{}, &IndexBuildError{Stage: "chunk", Err: err}
	}
	logger.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("INDEXER: split corpus into chunks")

	entries, err := s.embedAll(ctx, chunks)
	if err != nil {
		return models.IndexStats{}, &IndexBuildError{Stage: "embed", Err: err}
	}
	if err := s.index.Rebuild(ctx, entries); err != nil {
		return models.IndexStats{}, &IndexBuildError{Stage: "write", Err: err}
	}

	stats := models.IndexStats{
		Documents: len(docs),
		Chunks:    len(chunks),
		Entries:   len(entries),
		Duration:  time.Since(start),
	}
	logger.Info().
		Int("documents", stats.Documents).
		Int("entries", stats.Entries).
		Dur("duration", stats.Duration).
		Msg("INDEXER: build finished")
	return stats, nil
}

// chunkAll splits every document and numbers the chunks in corpus order.
func (s *indexingService) chunkAll(docs []models.Document) ([]models.Chunk, error) {
	var all []models.Chunk
	for _, doc := range docs {
		chunks, err := s.chunker.Split(doc)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			c.Seq = len(all)
			all = append(all, c)
		}
	}
	return all, nil
}

// embedAll embeds chunks in batches with bounded concurrency. The first
// failing batch cancels the rest.
func (s *indexingService) embedAll(ctx context.Context, chunks []models.Chunk) ([]models.IndexEntry, error) {
	entries := make([]models.IndexEntry, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		g.Go(func() error {
			batchCtx := gctx
			if s.opts.BatchTimeout > 0 {
				var cancel context.CancelFunc
				batchCtx, cancel = context.WithTimeout(gctx, s.opts.BatchTimeout)
				defer cancel()
			}
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			vectors, err := s.embedder.EmbedDocuments(batchCtx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vectors))
			}
			for i, v := range vectors {
				c := chunks[start+i]
				entries[start+i] = models.IndexEntry{
					ID:        vectorstore.EntryID(c.DocumentID, c.Index),
					Chunk:     c,
					Embedding: v,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
