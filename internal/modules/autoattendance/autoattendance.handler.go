package autoattendance

import (
	"net/http"

	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/Lakshmikallagunta/Shams/internal/shared/errors"
	"github.com/Lakshmikallagunta/Shams/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// ConnectivityReporter is satisfied by database.Gate.
type ConnectivityReporter interface {
	Status() string
}

// Handler exposes the job's state over HTTP
type Handler struct {
	scheduler *Scheduler
	enabled   bool
	gate      ConnectivityReporter
	logger    *observability.Logger
}

func NewHandler(scheduler *Scheduler, enabled bool, gate ConnectivityReporter, logger *observability.Logger) *Handler {
	return &Handler{
		scheduler: scheduler,
		enabled:   enabled,
		gate:      gate,
		logger:    logger,
	}
}

// Status godoc
// @Summary Auto-attendance job status
// @Description Reports whether a run is in progress, the next daily firing and the last outcome
// @Tags Jobs
// @Produce json
// @Success 200 {object} utils.Response{data=StatusResponse}
// @Failure 503 {object} utils.Response
// @Router /jobs/auto-attendance [get]
func (h *Handler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	resp := StatusResponse{
		Enabled:  h.enabled,
		State:    StateIdle,
		Database: h.gate.Status(),
	}

	if h.scheduler != nil {
		resp.State = h.scheduler.State()
		resp.Schedule = h.scheduler.Schedule()
		resp.Timezone = h.scheduler.Location().String()
		if next, ok := h.scheduler.NextRun(); ok {
			resp.NextRun = &next
		}

		last, found, err := h.scheduler.LastOutcome(ctx)
		if err != nil {
			h.logger.Error(ctx, "Failed to load last auto-attendance outcome", h.logger.Field("error", err))
			utils.Error(c, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "Job status is unavailable"))
			return
		}
		if found {
			resp.LastOutcome = &last
		}
	}

	utils.Success(c, http.StatusOK, resp)
}
