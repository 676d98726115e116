package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/vectorstore"
)

// searchSnippetRunes bounds the content returned by Search.
const searchSnippetRunes = 300

// PipelineState is the startup state reported by the health endpoint.
type PipelineState string

const (
	StateInitializing PipelineState = "initializing"
	StateReady        PipelineState = "ready"
	StateFailed       PipelineState = "failed"
)

// RAGService interface defines the question-answering pipeline.
type RAGService interface {
	// Startup builds the index if it is empty and marks the pipeline ready.
	Startup(ctx context.Context) error
	// Ask routes, retrieves and synthesizes an answer for question.
	Ask(ctx context.Context, question string) (*models.AnswerPayload, error)
	// AskWithMode is Ask with an optional caller-chosen analysis type that
	// replaces routing. An empty analysisType routes as usual.
	AskWithMode(ctx context.Context, question, analysisType string) (*models.AnswerPayload, error)
	// Rebuild re-indexes the whole corpus. Concurrent questions keep being
	// answered from the previous index until the new one is swapped in.
	Rebuild(ctx context.Context) (models.IndexStats, error)
	Health(ctx context.Context) models.HealthResponse
	Ready() bool
	AnalysisTypes() []models.AnalysisTypeInfo
	Topics(ctx context.Context) ([]string, error)
	Search(ctx context.Context, question string, k int) (*models.SearchResponse, error)
}

// RAGDependencies are the collaborators of the pipeline.
type RAGDependencies struct {
	Builder      IndexBuilder
	Router       IntentRouter
	Retriever    Retriever
	Synthesizer  Synthesizer
	Index        vectorstore.Index
	Loader       CorpusLoader
	Metrics      *metrics.Recorder
	TopK         int
	SearchTopK   int
	BuildTimeout time.Duration
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	deps RAGDependencies

	// buildMu serializes index builds.
	buildMu sync.Mutex

	stateMu sync.RWMutex
	state   PipelineState
	message string

	topicsMu sync.Mutex
	topics   []string
}

// NewRAGService creates a new RAG service instance
func NewRAGService(deps RAGDependencies) RAGService {
	if deps.TopK <= 0 {
		deps.TopK = DefaultTopK
	}
	if deps.SearchTopK <= 0 {
		deps.SearchTopK = 5
	}
	return &ragServiceImpl{
		deps:    deps,
		state:   StateInitializing,
		message: "Building the case study index",
	}
}

func (r *ragServiceImpl) setState(state PipelineState, message string) {
	r.stateMu.Lock()
	r.state, r.message = state, message
	r.stateMu.Unlock()
}

func (r *ragServiceImpl) snapshot() (PipelineState, string) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state, r.message
}

func (r *ragServiceImpl) Ready() bool {
	state, _ := r.snapshot()
	return state == StateReady
}

func (r *ragServiceImpl) Startup(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	// The state only moves once the build lock is held, so a rebuild that is
	// already running never sees a ready pipeline flip back to initializing.
	var wasReady bool
	stats, err := r.build(ctx, false, func() {
		wasReady = r.Ready()
		if !wasReady {
			r.setState(StateInitializing, "Building the case study index")
		}
	})
	if err != nil {
		if wasReady {
			logger.Error().Err(err).Msg("SERVICE: startup indexing failed, previous index stays active")
			return err
		}
		logger.Error().Err(err).Msg("SERVICE: startup indexing failed, pipeline is not ready")
		r.setState(StateFailed, "Index build failed: "+err.Error())
		return err
	}
	msg := fmt.Sprintf("ConvoTrack QA pipeline ready with %d indexed chunks", stats.Entries)
	if stats.Entries == 0 {
		msg = "ConvoTrack QA pipeline ready, but the case study index is empty"
	}
	r.setState(StateReady, msg)
	logger.Info().Int("entries", stats.Entries).Bool("skipped", stats.Skipped).Msg("SERVICE: pipeline ready")
	return nil
}

func (r *ragServiceImpl) Rebuild(ctx context.Context) (models.IndexStats, error) {
	stats, err := r.build(ctx, true, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("SERVICE: rebuild failed, previous index stays active")
		return stats, err
	}
	// Topics come from the corpus, which may have changed.
	r.topicsMu.Lock()
	r.topics = nil
	r.topicsMu.Unlock()
	r.setState(StateReady, fmt.Sprintf("ConvoTrack QA pipeline ready with %d indexed chunks", stats.Entries))
	return stats, nil
}

// build runs one index build under buildMu. locked, when set, runs right
// after the lock is acquired.
func (r *ragServiceImpl) build(ctx context.Context, force bool, locked func()) (models.IndexStats, error) {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()
	if locked != nil {
		locked()
	}

	if r.deps.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deps.BuildTimeout)
		defer cancel()
	}
	stats, err := r.deps.Builder.BuildIndex(ctx, force)
	switch {
	case err != nil:
		r.deps.Metrics.Build("failure", 0)
	case stats.Skipped:
		r.deps.Metrics.Build("skipped", stats.Entries)
	default:
		r.deps.Metrics.Build("success", stats.Entries)
	}
	return stats, err
}

func (r *ragServiceImpl) Ask(ctx context.Context, question string) (*models.AnswerPayload, error) {
	return r.AskWithMode(ctx, question, "")
}

func (r *ragServiceImpl) AskWithMode(ctx context.Context, question, analysisType string) (*models.AnswerPayload, error) {
	// 1. Validate the request. Nothing external has been called yet.
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	override, err := parseOverride(analysisType)
	if err != nil {
		return nil, err
	}
	if !r.Ready() {
		return nil, ErrNotReady
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().Str("question", truncateRunes(question, 80)).Msg("SERVICE: answering question")

	// 2. Pick the analysis mode. A caller-chosen type skips the router.
	mode := override
	if mode == "" {
		start := time.Now()
		classified, routeErr := r.deps.Router.Classify(ctx, question)
		r.deps.Metrics.ObserveStage("route", start)
		if routeErr != nil || !classified.Valid() {
			r.deps.Metrics.RouterFallback()
		}
		mode = ResolveMode(ctx, classified, routeErr)
	}

	// 3. Retrieve evidence. Failures here leave the result empty.
	start := time.Now()
	result := r.deps.Retriever.Retrieve(ctx, question, r.deps.TopK)
	r.deps.Metrics.ObserveStage("retrieve", start)

	// 4. Generate the answer. A model failure fails the request.
	start = time.Now()
	payload, err := r.deps.Synthesizer.Synthesize(ctx, question, mode, result)
	r.deps.Metrics.ObserveStage("synthesize", start)
	if err != nil {
		r.deps.Metrics.Question(string(mode), "failed")
		return nil, err
	}
	r.deps.Metrics.Question(string(mode), "answered")
	logger.Info().
		Str("mode", string(mode)).
		Int("chunks", result.Len()).
		Int("sources", len(payload.Sources)).
		Str("confidence", string(payload.Confidence)).
		Msg("SERVICE: question answered")
	return payload, nil
}

// parseOverride maps a requested analysis type to a mode. "default" is the
// name older clients use for general.
func parseOverride(analysisType string) (models.AnalysisMode, error) {
	t := strings.ToLower(strings.TrimSpace(analysisType))
	if t == "" {
		return "", nil
	}
	if t == "default" {
		return models.ModeGeneral, nil
	}
	mode, ok := models.ParseAnalysisMode(t)
	if !ok {
		return "", &ValidationError{Field: "analysis_type", Reason: fmt.Sprintf("unknown analysis type %q", analysisType)}
	}
	return mode, nil
}

func (r *ragServiceImpl) Health(ctx context.Context) models.HealthResponse {
	state, message := r.snapshot()
	resp := models.HealthResponse{
		Status:  string(state),
		Message: message,
		Ready:   state == StateReady,
	}
	if r.deps.Index != nil {
		if n, err := r.deps.Index.Count(ctx); err == nil {
			resp.IndexEntries = n
		} else {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("SERVICE: could not count index entries")
		}
	}
	return resp
}

func (r *ragServiceImpl) AnalysisTypes() []models.AnalysisTypeInfo {
	return models.AnalysisTypes()
}

// Topics lists the case studies in the corpus. The list is computed once and
// refreshed after a rebuild.
func (r *ragServiceImpl) Topics(ctx context.Context) ([]string, error) {
	r.topicsMu.Lock()
	defer r.topicsMu.Unlock()
	if r.topics != nil {
		return r.topics, nil
	}
	if r.deps.Loader == nil {
		return []string{}, nil
	}
	docs, err := r.deps.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus for topics: %w", err)
	}
	r.topics = CaseStudyTopics(docs)
	return r.topics, nil
}

func (r *ragServiceImpl) Search(ctx context.Context, question string, k int) (*models.SearchResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if !r.Ready() {
		return nil, ErrNotReady
	}
	if k <= 0 {
		k = r.deps.SearchTopK
	}
	result, err := r.deps.Retriever.Search(ctx, question, k)
	if err != nil {
		var up *UpstreamServiceError
		if !errors.As(err, &up) {
			err = &UpstreamServiceError{Service: "retriever", Op: "search", Err: err}
		}
		return nil, err
	}
	hits := make([]models.SearchHit, 0, result.Len())
	for _, c := range result.Chunks {
		hits = append(hits, models.SearchHit{
			Content:       truncateRunes(c.Chunk.Text, searchSnippetRunes),
			URL:           c.Chunk.URL,
			ArticleNumber: c.Chunk.DocumentID,
			ChunkIndex:    c.Chunk.Index,
			Score:         c.Score,
		})
	}
	return &models.SearchResponse{Query: question, Results: hits}, nil
}
