package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fuelerp/backend/internal/infrastructure/scheduler"
	"github.com/fuelerp/backend/internal/interfaces/http/dto"
)

// SystemHandler handles health and scheduler administration endpoints
type SystemHandler struct {
	BaseHandler
	db        *gorm.DB
	scheduler *scheduler.SettlementCronScheduler
}

// NewSystemHandler creates a new SystemHandler. The scheduler may be
// nil when the cron scheduler is disabled.
func NewSystemHandler(db *gorm.DB, sched *scheduler.SettlementCronScheduler) *SystemHandler {
	return &SystemHandler{db: db, scheduler: sched}
}

// Health reports service liveness and database connectivity
func (h *SystemHandler) Health(c *gin.Context) {
	status := "ok"
	httpStatus := http.StatusOK

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{"status": status})
}

// SchedulerStatus reports the cron scheduler's configuration and state
func (h *SystemHandler) SchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		h.Success(c, gin.H{"enabled": false})
		return
	}
	h.Success(c, h.scheduler.GetStatus())
}

// TriggerPenaltyRun manually starts a penalty accrual run
func (h *SystemHandler) TriggerPenaltyRun(c *gin.Context) {
	h.trigger(c, func() error {
		return h.scheduler.TriggerPenaltyRun(c.Request.Context())
	})
}

// TriggerWindowRun manually starts a window settlement run
func (h *SystemHandler) TriggerWindowRun(c *gin.Context) {
	h.trigger(c, func() error {
		return h.scheduler.TriggerWindowRun(c.Request.Context())
	})
}

// TriggerPaymentSweep manually starts a payment sweep
func (h *SystemHandler) TriggerPaymentSweep(c *gin.Context) {
	h.trigger(c, func() error {
		return h.scheduler.TriggerPaymentSweep(c.Request.Context())
	})
}

func (h *SystemHandler) trigger(c *gin.Context, run func() error) {
	if h.scheduler == nil {
		c.JSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidState, "Scheduler is disabled", getRequestID(c)))
		return
	}
	if err := run(); err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			c.JSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeInvalidState, "Scheduler is not running", getRequestID(c)))
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"triggered": true})
}

// RegisterRoutes registers scheduler administration routes. The health
// endpoint is registered separately, outside tenant middleware.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sched := rg.Group("/scheduler")
	{
		sched.GET("/status", h.SchedulerStatus)
		sched.POST("/penalty-run", h.TriggerPenaltyRun)
		sched.POST("/window-run", h.TriggerWindowRun)
		sched.POST("/payment-sweep", h.TriggerPaymentSweep)
	}
}
