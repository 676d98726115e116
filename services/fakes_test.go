package services

import (
	"context"
	"errors"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

const testDim = 384

// hashEmbedder is a bag-of-words embedder: texts sharing words get similar
// vectors. Vectors are never all zero.
type hashEmbedder struct {
	dim       int
	docCalls  atomic.Int32
	queryCall atomic.Int32
	failWith  error

	// blockQuery makes EmbedQuery wait for ctx cancellation.
	blockQuery bool
}

func newHashEmbedder() *hashEmbedder { return &hashEmbedder{dim: testDim} }

func (h *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dim)
	v[h.dim-1] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		if w == "" {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[int(f.Sum32()%uint32(h.dim-1))] += 1
	}
	return v
}

func (h *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	h.docCalls.Add(1)
	if h.failWith != nil {
		return nil, h.failWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	h.queryCall.Add(1)
	if h.blockQuery {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if h.failWith != nil {
		return nil, h.failWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

// scriptedCompleter answers with reply, or with the router keyword when the
// prompt is a routing prompt and route is set.
type scriptedCompleter struct {
	mu      sync.Mutex
	prompts []string
	opts    []CompletionOptions
	calls   atomic.Int32

	route    string
	routeErr error
	reply    string
	replyErr error

	// blockRoute and blockReply wait for ctx cancellation instead of answering.
	blockRoute bool
	blockReply bool
}

func isRouterPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "You are an expert request router")
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if isRouterPrompt(prompt) {
		if s.blockRoute {
			<-ctx.Done()
			return "", ctx.Err()
		}
		if s.routeErr != nil {
			return "", s.routeErr
		}
		return s.route, nil
	}
	if s.blockReply {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.replyErr != nil {
		return "", s.replyErr
	}
	return s.reply, nil
}

func (s *scriptedCompleter) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// staticLoader serves a fixed corpus.
type staticLoader struct {
	docs  []models.Document
	err   error
	calls atomic.Int32
}

func (l *staticLoader) Load(context.Context) ([]models.Document, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	out := make([]models.Document, len(l.docs))
	copy(out, l.docs)
	return out, nil
}

// brokenIndex fails every operation.
type brokenIndex struct{ count int }

var errIndexDown = errors.New("index unavailable")

func (b *brokenIndex) Dimension() int { return testDim }
func (b *brokenIndex) Count(context.Context) (int, error) {
	if b.count > 0 {
		return b.count, nil
	}
	return 0, errIndexDown
}
func (b *brokenIndex) Upsert(context.Context, []models.IndexEntry) error  { return errIndexDown }
func (b *brokenIndex) Rebuild(context.Context, []models.IndexEntry) error { return errIndexDown }
func (b *brokenIndex) Query(context.Context, []float32, int) ([]models.ScoredChunk, error) {
	return nil, errIndexDown
}
func (b *brokenIndex) Close() error { return nil }

// langchainClient implements embeddings.EmbedderClient for the embedding
// service tests.
type langchainClient struct {
	dim   int
	calls atomic.Int32
	err   error
}

func (c *langchainClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, c.dim)
		v[i%c.dim] = 1
		out[i] = v
	}
	return out, nil
}

func scrapeMetrics(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	return w.Body.String()
}
