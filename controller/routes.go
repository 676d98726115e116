package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/ShubAce/ConvoTrack-Assigment/config"
	"github.com/ShubAce/ConvoTrack-Assigment/metrics"
)

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(cfg config.ServerConfig, ragController *RAGController, rec *metrics.Recorder) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS(cfg.AllowedOrigins), Metrics(rec))

	router.GET("/", ragController.Root)
	router.GET("/health", ragController.Health)
	router.POST("/ask", ragController.Ask)
	router.GET("/metrics", gin.WrapH(rec.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/ask", ragController.Ask)
		apiV1.POST("/search", ragController.Search)
		apiV1.GET("/analysis-types", ragController.AnalysisTypes)
		apiV1.GET("/topics", ragController.Topics)
		if cfg.EnableAdmin {
			apiV1.POST("/admin/rebuild", ragController.Rebuild)
		}
	}
	return router
}
