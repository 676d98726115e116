package services

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 15

// Retriever finds the chunks most similar to a question.
type Retriever interface {
	// Retrieve never fails: errors and timeouts degrade to an empty result.
	Retrieve(ctx context.Context, question string, k int) models.RetrievalResult
	// Search is Retrieve with errors reported to the caller.
	Search(ctx context.Context, question string, k int) (models.RetrievalResult, error)
}

type retrieverService struct {
	embedder Embedder
	index    vectorstore.Index
	timeout  time.Duration
	metrics  *metrics.Recorder
	tracer   trace.Tracer
}

func NewRetriever(embedder Embedder, index vectorstore.Index, timeout time.Duration, rec *metrics.Recorder) Retriever {
	return &retrieverService{
		embedder: embedder,
		index:    index,
		timeout:  timeout,
		metrics:  rec,
		tracer:   otel.Tracer("convotrack.retriever"),
	}
}

func (r *retrieverService) Retrieve(ctx context.Context, question string, k int) models.RetrievalResult {
	res, err := r.Search(ctx, question, k)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("RETRIEVER: retrieval failed, continuing without context")
		r.metrics.RetrievalDegraded()
		return models.RetrievalResult{Chunks: []models.ScoredChunk{}}
	}
	return res
}

func (r *retrieverService) Search(ctx context.Context, question string, k int) (res models.RetrievalResult, err error) {
	if k <= 0 {
		k = DefaultTopK
	}
	ctx, span := r.tracer.Start(ctx, "convotrack.retriever.search", trace.WithAttributes(attribute.Int("k", k)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("results", res.Len()))
		}
		span.End()
	}()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	empty := models.RetrievalResult{Chunks: []models.ScoredChunk{}}
	count, err := r.index.Count(ctx)
	if err != nil {
		return empty, &UpstreamServiceError{Service: "index", Op: "count", Err: err}
	}
	if count == 0 {
		return empty, nil
	}
	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return empty, err
	}
	chunks, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return empty, &UpstreamServiceError{Service: "index", Op: "query", Err: err}
	}
	rankChunks(chunks)
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return models.RetrievalResult{Chunks: chunks}, nil
}

// rankChunks orders by descending score; equal scores keep the chunk that was
// indexed first.
func rankChunks(chunks []models.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Chunk.Seq < chunks[j].Chunk.Seq
	})
}
