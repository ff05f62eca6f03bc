package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	creditapp "github.com/fuelerp/backend/internal/application/credit"
)

// CreditHandler handles credit risk API endpoints
type CreditHandler struct {
	BaseHandler
	creditService *creditapp.CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(creditService *creditapp.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// AssessStation scores a station's creditworthiness from its margin
// history and repayment record
func (h *CreditHandler) AssessStation(c *gin.Context) {
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

	// All assessment tunables are optional, so an empty body is fine
	var req creditapp.AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, bindingError(err))
		return
	}

	assessment, err := h.creditService.AssessStation(c.Request.Context(), tenantID, stationID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, assessment)
}

// RegisterRoutes registers credit routes
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stations := rg.Group("/stations")
	{
		stations.POST("/:stationId/credit-assessment", h.AssessStation)
	}
}
