package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/Lakshmikallagunta/Shams/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Connectivity is satisfied by database.Gate.
type Connectivity interface {
	IsReady() bool
	Status() string
}

type Handler struct {
	gate      Connectivity
	dbStats   func() sql.DBStats
	redis     redis.Cmdable
	startTime time.Time
}

// NewHandler builds the health handler. dbStats and redisClient are optional;
// dbStats is only available with the SQL store.
func NewHandler(gate Connectivity, dbStats func() sql.DBStats, redisClient redis.Cmdable) *Handler {
	return &Handler{
		gate:      gate,
		dbStats:   dbStats,
		redis:     redisClient,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	Database DatabaseHealth `json:"database"`
	Redis    string         `json:"redis,omitempty"`
	System   SystemHealth   `json:"system"`
}

type DatabaseHealth struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"open_connections,omitempty"`
	InUse           int    `json:"in_use,omitempty"`
	Idle            int    `json:"idle,omitempty"`
	MaxOpenConns    int    `json:"max_open_conns,omitempty"`
}

type SystemHealth struct {
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
	NumCPU       int    `json:"num_cpu"`
}

// Ping answers the uptime check. It always returns 200 and reports the
// store connection separately.
// @Summary Liveness with store status
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/health [get]
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  h.gate.Status(),
	})
}

// Root is the plain banner served outside production.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":  "SHAMS API Server Running",
		"database": h.gate.Status(),
	})
}

// @Summary Check API health
// @Description Detailed health including store pool, cache and runtime figures
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	dbHealth := h.getDatabaseHealth()

	overallStatus := "ok"
	if !h.gate.IsReady() {
		overallStatus = "degraded"
	}

	resp := HealthResponse{
		Status:   overallStatus,
		Version:  "1.0.0",
		Uptime:   time.Since(h.startTime).String(),
		Database: dbHealth,
		System:   h.getSystemHealth(),
	}
	if h.redis != nil {
		resp.Redis = h.checkRedis(c.Request.Context())
		if resp.Redis != "ok" {
			resp.Status = "degraded"
		}
	}

	utils.Success(c, http.StatusOK, resp)
}

// @Summary Check API readiness
// @Description Ready once the store connection has been established
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	if !h.gate.IsReady() {
		utils.Success(c, http.StatusServiceUnavailable, HealthResponse{
			Status:   "not ready",
			Database: DatabaseHealth{Status: h.gate.Status()},
		})
		return
	}
	utils.Success(c, http.StatusOK, HealthResponse{
		Status:   "ready",
		Database: DatabaseHealth{Status: h.gate.Status()},
	})
}

// @Summary Check API liveness
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /alive [get]
func (h *Handler) Alive(c *gin.Context) {
	utils.Success(c, http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (h *Handler) checkRedis(ctx context.Context) string {
	redisCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.redis.Ping(redisCtx).Err(); err != nil {
		return "error"
	}
	return "ok"
}

func (h *Handler) getDatabaseHealth() DatabaseHealth {
	health := DatabaseHealth{Status: h.gate.Status()}
	if h.dbStats == nil {
		return health
	}

	stats := h.dbStats()
	health.OpenConnections = stats.OpenConnections
	health.InUse = stats.InUse
	health.Idle = stats.Idle
	health.MaxOpenConns = stats.MaxOpenConnections
	return health
}

func (h *Handler) getSystemHealth() SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemHealth{
		NumGoroutine: runtime.NumGoroutine(),
		MemAllocMB:   m.Alloc / 1024 / 1024,
		NumCPU:       runtime.NumCPU(),
	}
}
