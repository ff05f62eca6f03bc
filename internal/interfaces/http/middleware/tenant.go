package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fuelerp/backend/internal/interfaces/http/dto"
)

// TenantIDKey is the gin context key holding the resolved tenant ID
const TenantIDKey = "tenant_id"

// TenantRequired resolves the tenant from the X-Tenant-ID header and
// rejects requests without one. Every settlement route is tenant scoped.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-Tenant-ID")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "X-Tenant-ID header is required"))
			return
		}

		tenantID, err := uuid.Parse(header)
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "X-Tenant-ID must be a valid UUID"))
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// GetTenantID returns the tenant resolved by TenantRequired
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(TenantIDKey)
	if !exists {
		return uuid.Nil, false
	}
	tenantID, ok := value.(uuid.UUID)
	return tenantID, ok
}
