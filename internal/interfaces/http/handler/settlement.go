package handler

import (
	"github.com/gin-gonic/gin"

	settlementapp "github.com/fuelerp/backend/internal/application/settlement"
	"github.com/fuelerp/backend/internal/domain/settlement"
)

// SettlementHandler handles settlement API endpoints
type SettlementHandler struct {
	BaseHandler
	settlementService *settlementapp.SettlementService
	statementService  *settlementapp.StatementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(
	settlementService *settlementapp.SettlementService,
	statementService *settlementapp.StatementService,
) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		statementService:  statementService,
	}
}

// ApproveSettlementRequest identifies the approver
type ApproveSettlementRequest struct {
	ApprovedBy string `json:"approved_by" binding:"required,uuid"`
}

// DisputeSettlementRequest carries the dispute reason
type DisputeSettlementRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RunWindowRequest triggers calculation for a whole pricing window
type RunWindowRequest struct {
	WindowID string                     `json:"window_id" binding:"required"`
	Other    settlement.OtherDeductions `json:"other_deductions"`
}

// Calculate nets a station's window accruals against deductions
func (h *SettlementHandler) Calculate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req settlementapp.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	sett, err := h.settlementService.Calculate(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sett)
}

// Approve approves a calculated settlement for payment
func (h *SettlementHandler) Approve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid settlement ID")
		return
	}

	var req ApproveSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}
	approvedBy, err := parseUUID(req.ApprovedBy)
	if err != nil {
		h.BadRequest(c, "approved_by must be a valid UUID")
		return
	}

	sett, err := h.settlementService.Approve(c.Request.Context(), tenantID, settlementID, approvedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sett)
}

// Pay marks an approved settlement as paid and sweeps its loan deduction
func (h *SettlementHandler) Pay(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid settlement ID")
		return
	}

	var req settlementapp.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	sett, err := h.settlementService.Pay(c.Request.Context(), tenantID, settlementID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sett)
}

// Dispute flags a settlement for review
func (h *SettlementHandler) Dispute(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid settlement ID")
		return
	}

	var req DisputeSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	sett, err := h.settlementService.Dispute(c.Request.Context(), tenantID, settlementID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sett)
}

// RunWindow calculates settlements for every station with accruals in
// the window
func (h *SettlementHandler) RunWindow(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req RunWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	result, err := h.settlementService.RunWindowBatch(c.Request.Context(), tenantID, req.WindowID, req.Other)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Get returns one settlement
func (h *SettlementHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid settlement ID")
		return
	}

	sett, err := h.settlementService.GetByID(c.Request.Context(), tenantID, settlementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sett)
}

// Statement returns the dealer-facing settlement statement
func (h *SettlementHandler) Statement(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid settlement ID")
		return
	}

	statement, err := h.statementService.GetStatement(c.Request.Context(), tenantID, settlementID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// List returns settlements filtered by status or station
func (h *SettlementHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	if raw := c.Query("station_id"); raw != "" {
		stationID, err := parseUUID(raw)
		if err != nil {
			h.BadRequest(c, "station_id must be a valid UUID")
			return
		}
		settlements, err := h.settlementService.ListByStation(c.Request.Context(), tenantID, stationID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, settlements)
		return
	}

	status := settlement.SettlementStatus(c.DefaultQuery("status", string(settlement.SettlementStatusCalculated)))
	if !status.IsValid() {
		h.BadRequest(c, "status is not a valid settlement status")
		return
	}
	settlements, err := h.settlementService.ListByStatus(c.Request.Context(), tenantID, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, settlements)
}

// RegisterRoutes registers settlement routes
func (h *SettlementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	settlements := rg.Group("/settlements")
	{
		settlements.POST("/calculate", h.Calculate)
		settlements.POST("/run-window", h.RunWindow)
		settlements.POST("/:id/approve", h.Approve)
		settlements.POST("/:id/pay", h.Pay)
		settlements.POST("/:id/dispute", h.Dispute)
		settlements.GET("", h.List)
		settlements.GET("/:id", h.Get)
		settlements.GET("/:id/statement", h.Statement)
	}
}
