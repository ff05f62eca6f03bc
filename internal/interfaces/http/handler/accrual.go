package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	accrualapp "github.com/fuelerp/backend/internal/application/accrual"
)

// AccrualHandler handles margin accrual API endpoints
type AccrualHandler struct {
	BaseHandler
	accrualService *accrualapp.MarginAccrualService
}

// NewAccrualHandler creates a new AccrualHandler
func NewAccrualHandler(accrualService *accrualapp.MarginAccrualService) *AccrualHandler {
	return &AccrualHandler{accrualService: accrualService}
}

// ProductSalesRequest is one product's sales within a station-day
type ProductSalesRequest struct {
	Product        string          `json:"product" binding:"required"`
	LitresSold     decimal.Decimal `json:"litres_sold" binding:"required"`
	AverageExPump  decimal.Decimal `json:"average_ex_pump"`
	TransactionIDs []string        `json:"transaction_ids"`
}

// StationDayRequest represents one station's sales for one day
type StationDayRequest struct {
	StationID string                `json:"station_id" binding:"required,uuid"`
	Date      time.Time             `json:"date" binding:"required"`
	WindowID  string                `json:"window_id" binding:"required"`
	Sales     []ProductSalesRequest `json:"sales" binding:"required,min=1,dive"`
}

// BatchAccrualRequest represents an end-of-day upload for many stations
type BatchAccrualRequest struct {
	WindowID string              `json:"window_id" binding:"required"`
	Days     []StationDayRequest `json:"days" binding:"required,min=1,dive"`
}

// AdjustAccrualRequest represents a manual margin adjustment
type AdjustAccrualRequest struct {
	Delta      decimal.Decimal `json:"delta" binding:"required"`
	Reason     string          `json:"reason" binding:"required"`
	AdjustedBy string          `json:"adjusted_by" binding:"required,uuid"`
}

func (r StationDayRequest) toInput() (accrualapp.StationDayInput, error) {
	stationID, err := parseUUID(r.StationID)
	if err != nil {
		return accrualapp.StationDayInput{}, err
	}
	sales := make([]accrualapp.ProductSalesInput, len(r.Sales))
	for i, sale := range r.Sales {
		sales[i] = accrualapp.ProductSalesInput{
			Product:        sale.Product,
			LitresSold:     sale.LitresSold,
			AverageExPump:  sale.AverageExPump,
			TransactionIDs: sale.TransactionIDs,
		}
	}
	return accrualapp.StationDayInput{
		StationID: stationID,
		Date:      r.Date,
		WindowID:  r.WindowID,
		Sales:     sales,
	}, nil
}

// ProcessStationDay computes accrual records for one station-day
func (h *AccrualHandler) ProcessStationDay(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req StationDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.BadRequest(c, "station_id must be a valid UUID")
		return
	}

	result, err := h.accrualService.ProcessStationDay(c.Request.Context(), tenantID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ProcessBatch computes accruals for many station-days in one upload
func (h *AccrualHandler) ProcessBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req BatchAccrualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	inputs := make([]accrualapp.StationDayInput, len(req.Days))
	for i, day := range req.Days {
		input, err := day.toInput()
		if err != nil {
			h.BadRequest(c, "station_id must be a valid UUID")
			return
		}
		inputs[i] = input
	}

	result, err := h.accrualService.ProcessBatch(c.Request.Context(), tenantID, req.WindowID, inputs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Adjust applies a manual margin adjustment to an accrual record
func (h *AccrualHandler) Adjust(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	recordID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid accrual record ID")
		return
	}

	var req AdjustAccrualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}
	adjustedBy, err := parseUUID(req.AdjustedBy)
	if err != nil {
		h.BadRequest(c, "adjusted_by must be a valid UUID")
		return
	}

	record, err := h.accrualService.ApplyAdjustment(c.Request.Context(), tenantID, recordID, req.Delta, req.Reason, adjustedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// Get returns one accrual record
func (h *AccrualHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	recordID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid accrual record ID")
		return
	}

	record, err := h.accrualService.GetByID(c.Request.Context(), tenantID, recordID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// PeriodSummary aggregates a station's accruals over a date range
func (h *AccrualHandler) PeriodSummary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	stationID, err := parseIDParam(c, "stationId")
	if err != nil {
		h.BadRequest(c, "Invalid station ID")
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	summary, err := h.accrualService.GetPeriodSummary(c.Request.Context(), tenantID, stationID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Trend returns a station's daily margin trend
func (h *AccrualHandler) Trend(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	stationID, err := parseIDParam(c, "stationId")
	if err != nil {
		h.BadRequest(c, "Invalid station ID")
		return
	}

	endDate := time.Now()
	if raw := c.Query("end_date"); raw != "" {
		endDate, err = time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "end_date must be formatted as YYYY-MM-DD")
			return
		}
	}
	days := parseIntQuery(c, "days", 30)

	trend, err := h.accrualService.GetTrend(c.Request.Context(), tenantID, stationID, endDate, days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, trend)
}

// RegisterRoutes registers accrual routes
func (h *AccrualHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accruals := rg.Group("/accruals")
	{
		accruals.POST("/station-day", h.ProcessStationDay)
		accruals.POST("/batch", h.ProcessBatch)
		accruals.POST("/:id/adjustments", h.Adjust)
		accruals.GET("/:id", h.Get)
	}
	stations := rg.Group("/stations")
	{
		stations.GET("/:stationId/margin-summary", h.PeriodSummary)
		stations.GET("/:stationId/margin-trend", h.Trend)
	}
}
