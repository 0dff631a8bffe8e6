package autoattendance

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine, handler *Handler) {
	jobsGroup := router.Group("/api/v1/jobs")
	{
		jobsGroup.GET("/auto-attendance", handler.Status)
	}
}
