package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the analysis API, the run event stream, health and
// metrics. hub and gatherer may be nil to leave their routes out.
func NewRouter(handler *AnalysisHandler, hub *SSEHub, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/analyses", handler.CreateAnalysis)
		api.GET("/analyses", handler.ListAnalyses)
		api.GET("/analyses/:id", handler.GetAnalysis)
		api.GET("/analyses/:id/report", handler.GetReport)
		if hub != nil {
			api.GET("/events", hub.HandleSSE)
		}
	}

	return router
}
