package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// routerMaxTokens leaves room for a keyword and nothing else.
const routerMaxTokens = 16

// IntentRouter picks the analysis mode for a question. It reports failures
// instead of hiding them; ResolveMode applies the fallback.
type IntentRouter interface {
	Classify(ctx context.Context, question string) (models.AnalysisMode, error)
}

type llmRouter struct {
	llm     Completer
	timeout time.Duration
	tracer  trace.Tracer
}

func NewIntentRouter(llm Completer, timeout time.Duration) IntentRouter {
	return &llmRouter{llm: llm, timeout: timeout, tracer: otel.Tracer("convotrack.router")}
}

func (r *llmRouter) Classify(ctx context.Context, question string) (mode models.AnalysisMode, err error) {
	ctx, span := r.tracer.Start(ctx, "convotrack.router.classify")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("mode", string(mode)))
		}
		span.End()
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out, err := r.llm.Complete(ctx, RouterPrompt(question), CompletionOptions{Temperature: 0, MaxTokens: routerMaxTokens, NoThinking: true})
	if err != nil {
		return "", err
	}
	return ParseRouterCompletion(out)
}

// ParseRouterCompletion accepts a completion that is exactly one mode
// keyword, ignoring case, surrounding whitespace and one trailing period.
func ParseRouterCompletion(out string) (models.AnalysisMode, error) {
	candidate := strings.TrimSuffix(strings.TrimSpace(out), ".")
	if mode, ok := models.ParseAnalysisMode(candidate); ok {
		return mode, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedMode, truncateRunes(out, 40))
}

// ResolveMode is the deterministic fallback applied to a Classify result:
// any error, or an invalid mode, resolves to general.
func ResolveMode(ctx context.Context, mode models.AnalysisMode, err error) models.AnalysisMode {
	if err == nil && mode.Valid() {
		return mode
	}
	ev := zerolog.Ctx(ctx).Warn()
	if errors.Is(err, context.DeadlineExceeded) {
		ev = ev.Str("reason", "timeout")
	}
	ev.Err(err).Msg("ROUTER: classification failed, falling back to general")
	return models.ModeGeneral
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
