package router

import (
	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers health and metrics endpoints
func (r *Router) setupHealthRoutes() {
	health := gin.WrapF(r.Container.Health.HTTPHandler())

	r.Engine.GET("/health", health)
	r.Engine.GET("/api/v1/health", health)
	r.Engine.GET("/metrics", gin.WrapH(r.Container.Metrics.Handler()))
}
