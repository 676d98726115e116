package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
)

// CompletionOptions tunes a single completion call.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int

	// NoThinking asks reasoning models to answer without a thinking phase,
	// whose tokens would otherwise count against MaxTokens.
	NoThinking bool
}

// Completer is the text-in/text-out contract of the language model.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

var errEmptyCompletion = errors.New("model returned an empty completion")

// NewCompleterFromConfig builds the completer for cfg.Provider.
func NewCompleterFromConfig(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return NewGeminiCompleter(client, cfg.Model), nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return NewLangChainCompleter(llm), nil
	case "ollama":
		llm, err := ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return NewLangChainCompleter(llm), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type geminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter completes prompts with a single GenerateContent call.
func NewGeminiCompleter(client *genai.Client, model string) Completer {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiCompleter{client: client, model: model}
}

func generateConfig(opts CompletionOptions) *genai.GenerateContentConfig {
	temperature := float32(opts.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.NoThinking {
		// Gemini 2.5 Flash accepts a zero budget; Pro rejects it and the
		// router falls back to general.
		var budget int32
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}
	return cfg
}

func (g *geminiCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generateConfig(opts))
	if err != nil {
		return "", &UpstreamServiceError{Service: "llm", Op: "generate content", Err: err}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", &UpstreamServiceError{Service: "llm", Op: "generate content", Err: errEmptyCompletion}
	}
	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			text.WriteString(p.Text)
		}
	}
	return nonEmptyCompletion(text.String())
}

type langChainCompleter struct {
	llm llms.Model
}

// NewLangChainCompleter adapts any langchaingo model, such as an
// OpenAI-compatible endpoint or a local Ollama server.
func NewLangChainCompleter(llm llms.Model) Completer {
	return &langChainCompleter{llm: llm}
}

func (l *langChainCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, l.llm, prompt, callOpts...)
	if err != nil {
		return "", &UpstreamServiceError{Service: "llm", Op: "generate content", Err: err}
	}
	return nonEmptyCompletion(out)
}

func nonEmptyCompletion(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", &UpstreamServiceError{Service: "llm", Op: "generate content", Err: errEmptyCompletion}
	}
	return s, nil
}
