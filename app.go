package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
	"github.com/ShubAce/ConvoTrack-Assigment/services"
	"github.com/ShubAce/ConvoTrack-Assigment/vectorstore"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg     *config.Config
	metrics *metrics.Recorder
	index   vectorstore.Index
	rag     services.RAGService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := services.ConfigurePDFLicense(cfg.Corpus.PDFLicenseKey); err != nil {
		// Text and markdown case studies still load without a license.
		log.Warn().Err(err).Msg("MAIN: PDF extraction disabled")
	}

	rec := metrics.New()

	index, err := vectorstore.Open(ctx, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	embedder, err := services.NewEmbedderFromConfig(cfg.Embedder, cfg.Index.Dimension)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	llm, err := services.NewCompleterFromConfig(ctx, cfg.LLM)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	chunker, err := services.NewChunker(cfg.Chunking)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	loader := services.NewCorpusLoader(cfg.Corpus)
	builder := services.NewIndexingService(loader, chunker, embedder, index, services.IndexingOptions{
		BatchSize:    cfg.Embedder.BatchSize,
		Concurrency:  cfg.Embedder.Concurrency,
		BatchTimeout: cfg.Timeouts.Embedding,
	})

	rag := services.NewRAGService(services.RAGDependencies{
		Builder:   builder,
		Router:    services.NewIntentRouter(llm, cfg.Timeouts.Router),
		Retriever: services.NewRetriever(embedder, index, cfg.Timeouts.Retrieval, rec),
		Synthesizer: services.NewSynthesizer(
			llm,
			services.NewConfidencePolicy(cfg.Synthesis),
			services.CompletionOptions{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
			cfg.Timeouts.Synthesis,
		),
		Index:        index,
		Loader:       loader,
		Metrics:      rec,
		TopK:         cfg.Retrieval.TopK,
		SearchTopK:   cfg.Retrieval.SearchTopK,
		BuildTimeout: cfg.Timeouts.Build,
	})

	log.Info().
		Str("index", cfg.Index.Provider).
		Str("embedder", cfg.Embedder.Provider+"/"+cfg.Embedder.Model).
		Str("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model).
		Msg("MAIN: pipeline wired")

	return &app{cfg: cfg, metrics: rec, index: index, rag: rag}, nil
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		log.Warn().Err(err).Msg("MAIN: failed to close vector index")
	}
}
