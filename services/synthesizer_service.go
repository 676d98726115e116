package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// Synthesizer turns a question and its evidence into the final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, mode models.AnalysisMode, result models.RetrievalResult) (*models.AnswerPayload, error)
}

// ConfidencePolicy grades evidence strength from the number of retrieved
// chunks and the best similarity. Raising either input never lowers the grade.
type ConfidencePolicy struct {
	HighThreshold   float64
	MediumThreshold float64
	HighMinChunks   int
}

func NewConfidencePolicy(cfg config.SynthesisConfig) ConfidencePolicy {
	return ConfidencePolicy{
		HighThreshold:   cfg.HighThreshold,
		MediumThreshold: cfg.MediumThreshold,
		HighMinChunks:   cfg.HighMinChunks,
	}
}

func (p ConfidencePolicy) Grade(chunks int, topScore float64) models.Confidence {
	minHigh := max(p.HighMinChunks, 1)
	switch {
	case chunks >= minHigh && topScore >= p.HighThreshold:
		return models.ConfidenceHigh
	case chunks >= 1 && topScore >= p.MediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

type synthesizerService struct {
	llm     Completer
	policy  ConfidencePolicy
	opts    CompletionOptions
	timeout time.Duration
	tracer  trace.Tracer
}

func NewSynthesizer(llm Completer, policy ConfidencePolicy, opts CompletionOptions, timeout time.Duration) Synthesizer {
	return &synthesizerService{
		llm:     llm,
		policy:  policy,
		opts:    opts,
		timeout: timeout,
		tracer:  otel.Tracer("convotrack.synthesizer"),
	}
}

// Synthesize calls the model exactly once. An empty result is still
// answered; the prompt tells the model that no evidence was found.
func (s *synthesizerService) Synthesize(
	ctx context.Context,
	question string,
	mode models.AnalysisMode,
	result models.RetrievalResult,
) (payload *models.AnswerPayload, err error) {
	if !mode.Valid() {
		mode = models.ModeGeneral
	}
	ctx, span := s.tracer.Start(ctx, "convotrack.synthesizer.synthesize", trace.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.Int("chunks", result.Len()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	completion, err := s.llm.Complete(ctx, BuildAnalysisPrompt(mode, question, result.Chunks), s.opts)
	if err != nil {
		// A timeout is a hard failure here, unlike in retrieval.
		if !IsUpstream(err) {
			err = &UpstreamServiceError{Service: "llm", Op: "complete", Err: err}
		}
		return nil, err
	}

	return &models.AnswerPayload{
		Question:     question,
		Answer:       frameAnswer(mode, completion),
		Sources:      DeduplicateSources(result.Chunks),
		AgentType:    mode.AgentType(),
		Confidence:   s.policy.Grade(result.Len(), result.TopScore()),
		AnalysisType: mode,
	}, nil
}

// frameAnswer adds the mode banner and footer around the completion without
// touching its content.
func frameAnswer(mode models.AnalysisMode, completion string) string {
	info := mode.Info()
	var b strings.Builder
	b.WriteString(info.Header)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(completion))
	if info.Footer != "" {
		b.WriteString("\n\n---\n")
		b.WriteString(info.Footer)
	}
	return b.String()
}

// DeduplicateSources keeps the first chunk seen per source, in retrieval
// order. Chunks without a URL are grouped per document and marked internal.
func DeduplicateSources(chunks []models.ScoredChunk) []models.Source {
	sources := make([]models.Source, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		key := c.Chunk.URL
		sourceType := models.SourceTypeWeb
		if key == "" {
			key = "doc:" + c.Chunk.DocumentID
			sourceType = models.SourceTypeInternal
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		sources = append(sources, models.Source{
			Content:       c.Chunk.Text,
			URL:           c.Chunk.URL,
			ArticleNumber: c.Chunk.DocumentID,
			SourceType:    sourceType,
			Score:         c.Score,
		})
	}
	return sources
}
