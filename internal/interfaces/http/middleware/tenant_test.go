package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelerp/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTenantTestEngine() (*gin.Engine, *uuid.UUID) {
	engine := gin.New()
	var seen uuid.UUID
	engine.GET("/protected", TenantRequired(), func(c *gin.Context) {
		tenantID, _ := GetTenantID(c)
		seen = tenantID
		c.Status(http.StatusOK)
	})
	return engine, &seen
}

func TestTenantRequired(t *testing.T) {
	t.Run("should pass the tenant through to the handler", func(t *testing.T) {
		engine, seen := newTenantTestEngine()
		tenantID := uuid.New()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("X-Tenant-ID", tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, *seen)
	})

	t.Run("should reject requests without a tenant header", func(t *testing.T) {
		engine, _ := newTenantTestEngine()

		req := httptest.NewRequest("GET", "/protected", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("should reject a malformed tenant header", func(t *testing.T) {
		engine, _ := newTenantTestEngine()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("X-Tenant-ID", "not-a-uuid")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject the nil tenant", func(t *testing.T) {
		engine, _ := newTenantTestEngine()

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("X-Tenant-ID", uuid.Nil.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetTenantID(t *testing.T) {
	t.Run("should report absence when middleware did not run", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, ok := GetTenantID(c)
		assert.False(t, ok)
	})
}
