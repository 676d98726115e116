package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
	"github.com/ShubAce/ConvoTrack-Assigment/services"
)

// Error codes returned in models.ErrorResponse.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// RAGController handles the HTTP requests for the QA API. It depends on the
// RAGService to perform the actual business logic.
type RAGController struct {
	ragService services.RAGService
}

// NewRAGController is called from main.go to inject the service dependency.
func NewRAGController(service services.RAGService) *RAGController {
	return &RAGController{
		ragService: service,
	}
}

// Ask is the handler for POST /ask and POST /api/v1/ask.
func (c *RAGController) Ask(ctx *gin.Context) {
	var req models.AskRequest

	// Bind the request JSON; a malformed body never reaches the service.
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// The service validates the question itself so that every entry point
	// shares the same rules.
	response, err := c.ragService.AskWithMode(ctx.Request.Context(), req.Question, req.AnalysisType)
	if err != nil {
		c.respondError(ctx, err, "Failed to generate an answer")
		return
	}

	// On success, return the answer with its sources and confidence.
	ctx.JSON(http.StatusOK, response)
}

// Search is the handler for POST /api/v1/search. It returns the raw
// retrieval hits without calling the language model.
func (c *RAGController) Search(ctx *gin.Context) {
	var req models.SearchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// Delegate to the service layer; Limit falls back to its default when zero.
	response, err := c.ragService.Search(ctx.Request.Context(), req.Question, req.Limit)
	if err != nil {
		c.respondError(ctx, err, "Search failed")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// Health reports readiness; it answers 503 until the index is built.
func (c *RAGController) Health(ctx *gin.Context) {
	health := c.ragService.Health(ctx.Request.Context())
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, health)
}

// Root is the liveness probe: same body as Health, always 200.
func (c *RAGController) Root(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.ragService.Health(ctx.Request.Context()))
}

// AnalysisTypes is the handler for GET /api/v1/analysis-types.
func (c *RAGController) AnalysisTypes(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, models.AnalysisTypesResponse{AnalysisTypes: c.ragService.AnalysisTypes()})
}

// Topics is the handler for GET /api/v1/topics.
func (c *RAGController) Topics(ctx *gin.Context) {
	topics, err := c.ragService.Topics(ctx.Request.Context())
	if err != nil {
		c.respondError(ctx, err, "Failed to list topics")
		return
	}
	ctx.JSON(http.StatusOK, models.TopicsResponse{Topics: topics})
}

// Rebuild is the handler for POST /api/v1/admin/rebuild. It blocks until
// the new index is active.
func (c *RAGController) Rebuild(ctx *gin.Context) {
	stats, err := c.ragService.Rebuild(ctx.Request.Context())
	if err != nil {
		c.respondError(ctx, err, "Index rebuild failed")
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// respondError maps service errors to a status and code. Details of upstream
// and internal failures are logged, not returned.
func (c *RAGController) respondError(ctx *gin.Context, err error, message string) {
	logger := zerolog.Ctx(ctx.Request.Context())
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		abortWithError(ctx, http.StatusBadRequest, CodeBadRequest, validation.Error())
	case errors.Is(err, services.ErrNotReady):
		abortWithError(ctx, http.StatusServiceUnavailable, CodeServiceUnavailable, "The service is still starting up, please retry shortly")
	// Model, embedder or index failures: the caller only sees the message.
	case services.IsUpstream(err):
		logger.Error().Err(err).Msg("CONTROLLER: upstream failure")
		abortWithError(ctx, http.StatusInternalServerError, CodeUpstream, message)
	default:
		logger.Error().Err(err).Msg("CONTROLLER: request failed")
		abortWithError(ctx, http.StatusInternalServerError, CodeInternal, message)
	}
}

func abortWithError(ctx *gin.Context, status int, code, message string) {
	ctx.AbortWithStatusJSON(status, models.ErrorResponse{Error: message, Code: code})
}
