// Package server exposes a navigation system over HTTP.
//
//	POST   /v1/build      build and install a volume
//	POST   /v1/paths      find a path, or queue one with "async": true
//	GET    /v1/paths/:id  poll a queued request
//	DELETE /v1/paths/:id  cancel a queued request
//	GET    /v1/stats      installed volume and queue statistics
//	GET    /metrics       Prometheus metrics
//	GET    /healthz       liveness
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/milk9111/gravnav/navsys"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "gravnav"

func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/build", h.HandleBuild)
	paths := rg.Group("/paths")
	{
		paths.POST("", h.HandleFindPath)
		paths.GET("/:id", h.HandleGetPath)
		paths.DELETE("/:id", h.HandleCancelPath)
	}
	rg.GET("/stats", h.HandleStats)
}

// NewRouter returns an engine serving sys. Every request gets a server
// span; opts configure the otelgin middleware.
func NewRouter(sys *navsys.System, logger *slog.Logger, opts ...otelgin.Option) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName, opts...))

	h := NewHandlers(sys, logger)
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(router.Group("/v1"), h)
	return router
}
