package app

import (
	"context"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/middleware"
	"github.com/Lakshmikallagunta/Shams/internal/modules/autoattendance"
	"github.com/Lakshmikallagunta/Shams/internal/modules/health"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

func SetupRouter(container *Container) *gin.Engine {
	cfg := container.Config
	production := cfg.Server.Env == "production"
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		container.Logger.Warn(context.Background(), "Invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(middleware.PanicRecoveryMiddleware(container.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(container.Logger))
	router.Use(middleware.LoggerMiddleware(container.Logger))
	router.Use(middleware.TimeoutMiddleware(requestTimeout))
	router.Use(middleware.BodyLimitMiddleware(maxBodyBytes))
	router.Use(middleware.OriginPolicyMiddleware(container.OriginMatcher, container.Logger, container.Metrics))
	router.Use(middleware.NewCORSMiddleware(cfg.CORS, container.OriginMatcher))
	router.Use(middleware.SecurityHeadersMiddleware(cfg.Server.UseHTTPS))
	if cfg.Metrics.Enabled {
		router.Use(middleware.MetricsMiddleware(container.Metrics))
	}
	router.Use(middleware.ErrorHandlingMiddleware(container.Logger, container.Metrics))

	health.RegisterRoutes(router, container.HealthHandler, production)
	autoattendance.RegisterRoutes(router, container.AutoAttendanceHandler)

	if cfg.Metrics.Enabled {
		router.GET("/api/v1/metrics", gin.WrapH(promhttp.HandlerFor(container.Metrics.Gatherer(), promhttp.HandlerOpts{})))
	}

	return router
}
