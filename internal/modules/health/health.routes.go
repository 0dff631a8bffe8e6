package health

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the health checks. The "/" banner is left out in production.
func RegisterRoutes(router *gin.Engine, handler *Handler, production bool) {
	router.GET("/api/health", handler.Ping)
	if !production {
		router.GET("/", handler.Root)
	}

	healthGroup := router.Group("/api/v1")
	healthGroup.GET("/health", handler.Health)
	healthGroup.GET("/ready", handler.Ready)
	healthGroup.GET("/alive", handler.Alive)
}
