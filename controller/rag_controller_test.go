package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/services"
)

type stubService struct {
	ready    bool
	askErr   error
	gotMode  string
	gotQ     string
	rebuilds int
}

func (s *stubService) Startup(context.Context) error { return nil }

func (s *stubService) Ask(ctx context.Context, q string) (*models.AnswerPayload, error) {
	return s.AskWithMode(ctx, q, "")
}

func (s *stubService) AskWithMode(_ context.Context, q, mode string) (*models.AnswerPayload, error) {
	s.gotQ, s.gotMode = q, mode
	if strings.TrimSpace(q) == "" {
		return nil, &services.ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if !s.ready {
		return nil, services.ErrNotReady
	}
	if s.askErr != nil {
		return nil, s.askErr
	}
	return &models.AnswerPayload{
		Question:     q,
		Answer:       "💼 **BUSINESS INTELLIGENCE ANALYSIS**\n\nanswer",
		Sources:      []models.Source{{Content: "c", URL: "https://x.test/u1", ArticleNumber: "1", SourceType: models.SourceTypeWeb, Score: 0.9}},
		AgentType:    "general_analysis",
		Confidence:   models.ConfidenceMedium,
		AnalysisType: models.ModeGeneral,
	}, nil
}

func (s *stubService) Rebuild(context.Context) (models.IndexStats, error) {
	s.rebuilds++
	return models.IndexStats{Documents: 2, Chunks: 3, Entries: 3}, nil
}

func (s *stubService) Health(context.Context) models.HealthResponse {
	if s.ready {
		return models.HealthResponse{Status: "ready", Message: "ok", Ready: true, IndexEntries: 3}
	}
	return models.HealthResponse{Status: "initializing", Message: "building"}
}

func (s *stubService) Ready() bool { return s.ready }

func (s *stubService) AnalysisTypes() []models.AnalysisTypeInfo { return models.AnalysisTypes() }

func (s *stubService) Topics(context.Context) ([]string, error) {
	return []string{"🍦 Ice Cream Trends (Food & Beverage)"}, nil
}

func (s *stubService) Search(_ context.Context, q string, k int) (*models.SearchResponse, error) {
	return &models.SearchResponse{Query: q, Results: []models.SearchHit{{Content: "c", ArticleNumber: "1", Score: float64(k)}}}, nil
}

func newTestRouter(svc services.RAGService, admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}, EnableAdmin: admin}
	return NewRouter(cfg, NewRAGController(svc), metrics.New())
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRAGController_Ask(t *testing.T) {
	t.Run("Should return the answer payload", func(t *testing.T) {
		for _, path := range []string{"/ask", "/api/v1/ask"} {
			svc := &stubService{ready: true}
			w := do(t, newTestRouter(svc, false), http.MethodPost, path, `{"question":"Who leads?","analysis_type":"trends"}`)
			require.Equal(t, http.StatusOK, w.Code, path)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			for _, key := range []string{"question", "answer", "sources", "agent_type", "confidence", "analysis_type"} {
				assert.Contains(t, body, key)
			}
			assert.Equal(t, "trends", svc.gotMode)
			assert.Equal(t, "Who leads?", svc.gotQ)
		}
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{ready: true}, false), http.MethodPost, "/ask", `{"question":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeBadRequest, decodeError(t, w).Code)
	})

	t.Run("Should reject an empty question", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{ready: true}, false), http.MethodPost, "/ask", `{"question":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, CodeBadRequest, decodeError(t, w).Code)
	})

	t.Run("Should answer 503 while the index is building", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{}, false), http.MethodPost, "/ask", `{"question":"q"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, CodeServiceUnavailable, decodeError(t, w).Code)
	})

	t.Run("Should hide upstream failure details", func(t *testing.T) {
		svc := &stubService{ready: true, askErr: &services.UpstreamServiceError{Service: "llm", Op: "generate content", Err: fmt.Errorf("api key sk-secret rejected")}}
		w := do(t, newTestRouter(svc, false), http.MethodPost, "/ask", `{"question":"q"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, CodeUpstream, resp.Code)
		assert.NotContains(t, w.Body.String(), "sk-secret")
		assert.NotContains(t, w.Body.String(), `"answer"`)
	})

	t.Run("Should map unknown failures to an internal error", func(t *testing.T) {
		svc := &stubService{ready: true, askErr: fmt.Errorf("boom")}
		w := do(t, newTestRouter(svc, false), http.MethodPost, "/ask", `{"question":"q"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, CodeInternal, decodeError(t, w).Code)
	})
}

func TestRAGController_Health(t *testing.T) {
	t.Run("Should answer 503 until ready", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{}, false), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body models.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Ready)
		assert.Equal(t, "initializing", body.Status)
	})

	t.Run("Should answer 200 once ready", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{ready: true}, false), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Should keep the liveness probe at 200", func(t *testing.T) {
		w := do(t, newTestRouter(&stubService{}, false), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRAGController_Catalog(t *testing.T) {
	router := newTestRouter(&stubService{ready: true}, false)

	t.Run("Should list the analysis types", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/analysis-types", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body models.AnalysisTypesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.AnalysisTypes, 5)
		assert.Equal(t, models.ModeGeneral, body.AnalysisTypes[0].ID)
		assert.NotContains(t, w.Body.String(), "BUSINESS INTELLIGENCE ANALYSIS")
	})

	t.Run("Should list the topics", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/api/v1/topics", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Ice Cream Trends")
	})

	t.Run("Should search without synthesis", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/api/v1/search", `{"question":"ice cream","limit":3}`)
		require.Equal(t, http.StatusOK, w.Code)
		var body models.SearchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ice cream", body.Query)
		require.Len(t, body.Results, 1)
		assert.Equal(t, 3.0, body.Results[0].Score)
	})
}

func TestRAGController_Admin(t *testing.T) {
	t.Run("Should not expose rebuild unless enabled", func(t *testing.T) {
		svc := &stubService{ready: true}
		w := do(t, newTestRouter(svc, false), http.MethodPost, "/api/v1/admin/rebuild", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, svc.rebuilds)
	})

	t.Run("Should rebuild synchronously when enabled", func(t *testing.T) {
		svc := &stubService{ready: true}
		w := do(t, newTestRouter(svc, true), http.MethodPost, "/api/v1/admin/rebuild", "")
		require.Equal(t, http.StatusOK, w.Code)
		var stats models.IndexStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 3, stats.Entries)
		assert.Equal(t, 1, svc.rebuilds)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Should allow configured origins only", func(t *testing.T) {
		router := newTestRouter(&stubService{ready: true}, false)

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Origin", "https://evil.test")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should answer preflight requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/ask", http.NoBody)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		newTestRouter(&stubService{}, false).ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Should echo or assign a request id", func(t *testing.T) {
		router := newTestRouter(&stubService{ready: true}, false)
		w := do(t, router, http.MethodGet, "/", "")
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set(RequestIDHeader, "req-123")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("Should expose prometheus metrics", func(t *testing.T) {
		router := newTestRouter(&stubService{ready: true}, false)
		do(t, router, http.MethodGet, "/health", "")
		w := do(t, router, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `convotrack_http_requests_total{route="/health",status="OK"} 1`)
	})
}
