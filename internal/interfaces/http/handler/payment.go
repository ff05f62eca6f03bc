package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	paymentapp "github.com/fuelerp/backend/internal/application/payment"
	"github.com/fuelerp/backend/internal/domain/payment"
	"github.com/fuelerp/backend/internal/domain/settlement"
)

// PaymentHandler handles payment automation API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *paymentapp.PaymentAutomationService
	ruleRepo       payment.PaymentRuleRepository
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	paymentService *paymentapp.PaymentAutomationService,
	ruleRepo payment.PaymentRuleRepository,
) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, ruleRepo: ruleRepo}
}

// ProcessBatchRequest identifies the operator executing a batch
type ProcessBatchRequest struct {
	ProcessedBy string `json:"processed_by" binding:"required,uuid"`
}

// RuleConditionsRequest mirrors the rule's match criteria
type RuleConditionsRequest struct {
	MinAmount        decimal.Decimal `json:"min_amount"`
	MaxAmount        decimal.Decimal `json:"max_amount" binding:"required"`
	AllowedStatuses  []string        `json:"allowed_statuses"`
	DaysFromApproval int             `json:"days_from_approval"`
}

// RiskControlsRequest mirrors the rule's risk limits
type RiskControlsRequest struct {
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	MonthlyLimit   decimal.Decimal `json:"monthly_limit"`
	DuplicateCheck bool            `json:"duplicate_check"`
	FraudCheck     bool            `json:"fraud_check"`
}

// CreateRuleRequest creates a payment rule
type CreateRuleRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Priority    int                   `json:"priority" binding:"required,min=1"`
	Method      string                `json:"method" binding:"required"`
	Conditions  RuleConditionsRequest `json:"conditions" binding:"required"`
	Controls    RiskControlsRequest   `json:"controls"`
}

// Sweep runs the automated payment sweep. Pass dry_run=true to
// evaluate eligibility without creating batches.
func (h *PaymentHandler) Sweep(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	dryRun := c.Query("dry_run") == "true"

	result, err := h.paymentService.ProcessAutomatedPayments(c.Request.Context(), tenantID, dryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ExecuteBatch disburses a pending batch through the bank rail
func (h *PaymentHandler) ExecuteBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	batchID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req ProcessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}
	processedBy, err := parseUUID(req.ProcessedBy)
	if err != nil {
		h.BadRequest(c, "processed_by must be a valid UUID")
		return
	}

	batch, err := h.paymentService.ExecuteBatch(c.Request.Context(), tenantID, batchID, processedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// RetryBatch retries only the failed items of a batch
func (h *PaymentHandler) RetryBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	batchID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req ProcessBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}
	processedBy, err := parseUUID(req.ProcessedBy)
	if err != nil {
		h.BadRequest(c, "processed_by must be a valid UUID")
		return
	}

	batch, err := h.paymentService.RetryFailedPayments(c.Request.Context(), tenantID, batchID, processedBy)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// CancelBatch cancels a batch that has not started processing
func (h *PaymentHandler) CancelBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	batchID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.paymentService.CancelBatch(c.Request.Context(), tenantID, batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// GetBatch returns one payment batch
func (h *PaymentHandler) GetBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	batchID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.paymentService.GetBatch(c.Request.Context(), tenantID, batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// ListBatches returns batches filtered by status
func (h *PaymentHandler) ListBatches(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	status := payment.BatchStatus(c.DefaultQuery("status", string(payment.BatchStatusPending)))
	if !status.IsValid() {
		h.BadRequest(c, "status is not a valid batch status")
		return
	}

	batches, err := h.paymentService.ListBatchesByStatus(c.Request.Context(), tenantID, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// CreateInstructions queues manual payment instructions
func (h *PaymentHandler) CreateInstructions(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req paymentapp.CreateInstructionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	instructions, err := h.paymentService.CreatePaymentInstructions(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, instructions)
}

// Report aggregates disbursement activity over a date range
func (h *PaymentHandler) Report(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	report, err := h.paymentService.GetPaymentReport(c.Request.Context(), tenantID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// CreateRule creates an active payment rule
func (h *PaymentHandler) CreateRule(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, bindingError(err))
		return
	}

	statuses := make([]settlement.SettlementStatus, len(req.Conditions.AllowedStatuses))
	for i, raw := range req.Conditions.AllowedStatuses {
		status := settlement.SettlementStatus(raw)
		if !status.IsValid() {
			h.BadRequest(c, "allowed_statuses contains an unknown status")
			return
		}
		statuses[i] = status
	}
	if len(statuses) == 0 {
		statuses = []settlement.SettlementStatus{settlement.SettlementStatusApproved}
	}

	rule, err := payment.NewPaymentRule(
		tenantID,
		req.Name,
		req.Description,
		req.Priority,
		payment.RuleConditions{
			MinAmount:        req.Conditions.MinAmount,
			MaxAmount:        req.Conditions.MaxAmount,
			AllowedStatuses:  statuses,
			DaysFromApproval: req.Conditions.DaysFromApproval,
		},
		payment.Method(req.Method),
		payment.RiskControls{
			DailyLimit:     req.Controls.DailyLimit,
			MonthlyLimit:   req.Controls.MonthlyLimit,
			DuplicateCheck: req.Controls.DuplicateCheck,
			FraudCheck:     req.Controls.FraudCheck,
		},
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.ruleRepo.Save(c.Request.Context(), rule); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// ListRules returns the tenant's active rules in evaluation order
func (h *PaymentHandler) ListRules(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	rules, err := h.ruleRepo.FindActiveForTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rules)
}

// DeactivateRule turns a rule off without deleting it
func (h *PaymentHandler) DeactivateRule(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	ruleID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	rule, err := h.ruleRepo.FindByIDForTenant(c.Request.Context(), tenantID, ruleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if rule == nil {
		h.BadRequest(c, "Payment rule not found")
		return
	}

	rule.Deactivate()
	if err := h.ruleRepo.Save(c.Request.Context(), rule); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// RegisterRoutes registers payment routes
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/sweep", h.Sweep)
		payments.POST("/batches/:id/execute", h.ExecuteBatch)
		payments.POST("/batches/:id/retry", h.RetryBatch)
		payments.POST("/batches/:id/cancel", h.CancelBatch)
		payments.GET("/batches", h.ListBatches)
		payments.GET("/batches/:id", h.GetBatch)
		payments.POST("/instructions", h.CreateInstructions)
		payments.GET("/report", h.Report)
		payments.POST("/rules", h.CreateRule)
		payments.GET("/rules", h.ListRules)
		payments.POST("/rules/:id/deactivate", h.DeactivateRule)
	}
}
