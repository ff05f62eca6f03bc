package handler

import (
	"github.com/gin-gonic/gin"

	lendingapp "github.com/fuelerp/backend/internal/application/lending"
)

// LoanHandler handles dealer loan API endpoints
type LoanHandler struct {
	BaseHandler
	loanService *lendingapp.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *lendingapp.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// ApproveLoanRequest identifies the approver
type ApproveLoanRequest struct {
	ApprovedBy string `json:"approved_by" binding:"required,uuid"`
}

// Create creates a loan pending approval
func (h *LoanHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req lendingapp.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	loan, err := h.loanService.CreateLoan(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, loan)
}

// Approve activates a pending loan and generates its schedule
func (h *LoanHandler) Approve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	var req ApproveLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}
	approvedBy, err := parseUUID(req.ApprovedBy)
	if err != nil {
		h.BadRequest(c, "approved_by must be a valid UUID")
		return
	}

	loan, err := h.loanService.ApproveLoan(c.Request.Context(), tenantID, loanID, approvedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loan)
}

// ProcessPayment applies a repayment to an active loan
func (h *LoanHandler) ProcessPayment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	var req lendingapp.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	loan, payment, err := h.loanService.ProcessPayment(c.Request.Context(), tenantID, loanID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"loan": loan, "payment": payment})
}

// Restructure closes a loan and opens its restructured successor
func (h *LoanHandler) Restructure(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	var req lendingapp.RestructureLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	successor, err := h.loanService.RestructureLoan(c.Request.Context(), tenantID, loanID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, successor)
}

// Get returns one loan
func (h *LoanHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	loan, err := h.loanService.GetByID(c.Request.Context(), tenantID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loan)
}

// ListPayments returns a loan's repayment history
func (h *LoanHandler) ListPayments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	payments, err := h.loanService.ListPayments(c.Request.Context(), tenantID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// PerformanceMetrics returns repayment performance for one loan
func (h *LoanHandler) PerformanceMetrics(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	loanID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	metrics, err := h.loanService.GetPerformanceMetrics(c.Request.Context(), tenantID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, metrics)
}

// ListByStation returns all loans for a station
func (h *LoanHandler) ListByStation(c *gin.Context) {
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

	loans, err := h.loanService.ListByStation(c.Request.Context(), tenantID, stationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loans)
}

// StationObligation returns a station's aggregate repayment obligation
func (h *LoanHandler) StationObligation(c *gin.Context) {
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

	obligation, err := h.loanService.GetStationObligation(c.Request.Context(), tenantID, stationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, obligation)
}

// RegisterRoutes registers loan routes
func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	loans := rg.Group("/loans")
	{
		loans.POST("", h.Create)
		loans.POST("/:id/approve", h.Approve)
		loans.POST("/:id/payments", h.ProcessPayment)
		loans.POST("/:id/restructure", h.Restructure)
		loans.GET("/:id", h.Get)
		loans.GET("/:id/payments", h.ListPayments)
		loans.GET("/:id/performance", h.PerformanceMetrics)
	}
	stations := rg.Group("/stations")
	{
		stations.GET("/:stationId/loans", h.ListByStation)
		stations.GET("/:stationId/obligation", h.StationObligation)
	}
}
