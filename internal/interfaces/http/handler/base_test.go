package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelerp/backend/internal/domain/shared"
	"github.com/fuelerp/backend/internal/interfaces/http/dto"
	"github.com/fuelerp/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from context string",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set("X-Request-ID", "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-id")
				c.Request.Header.Set("X-Request-ID", "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(t)
			tt.setup(c)

			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestGetTenantID(t *testing.T) {
	t.Run("should return the tenant set by middleware", func(t *testing.T) {
		c, _ := newTestContext(t)
		tenantID := uuid.New()
		c.Set(middleware.TenantIDKey, tenantID)

		got, err := getTenantID(c)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
	})

	t.Run("should fail when the tenant was never resolved", func(t *testing.T) {
		c, _ := newTestContext(t)

		_, err := getTenantID(c)
		assert.Error(t, err)
	})
}

func TestBaseHandlerResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("should wrap data in a success envelope", func(t *testing.T) {
		c, w := newTestContext(t)
		h.Success(c, gin.H{"value": 42})

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("should return 201 for created resources", func(t *testing.T) {
		c, w := newTestContext(t)
		h.Created(c, gin.H{"id": uuid.New()})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeResponse(t, w).Success)
	})

	t.Run("should return 400 with the bad request code", func(t *testing.T) {
		c, w := newTestContext(t)
		h.BadRequest(c, "station_id must be a valid UUID")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Equal(t, "station_id must be a valid UUID", resp.Error.Message)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "not found maps to 404",
			err:            shared.NewDomainError("NOT_FOUND", "Settlement not found"),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrCodeNotFound,
		},
		{
			name:           "invalid state maps to 409",
			err:            shared.NewDomainError("INVALID_STATE", "Settlement is not approved"),
			expectedStatus: http.StatusConflict,
			expectedCode:   dto.ErrCodeInvalidState,
		},
		{
			name:           "validation failure maps to 400",
			err:            shared.NewDomainError("VALIDATION_FAILURE", "Litres sold cannot be negative"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrCodeValidation,
		},
		{
			name:           "domain validation codes collapse to validation",
			err:            shared.NewDomainError("INVALID_VOLUME", "Litres sold cannot be negative"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   dto.ErrCodeValidation,
		},
		{
			name:           "external failure maps to 502",
			err:            shared.NewDomainError("EXTERNAL_FAILURE", "Pricing authority is unreachable"),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   dto.ErrCodeExternal,
		},
		{
			name:           "concurrency conflict maps to 409",
			err:            shared.NewDomainError("CONCURRENCY_CONFLICT", "Settlement was modified concurrently"),
			expectedStatus: http.StatusConflict,
			expectedCode:   dto.ErrCodeConflict,
		},
		{
			name:           "unknown errors map to 500 without leaking details",
			err:            errors.New("pq: connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(t)
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)

			if tt.expectedCode == dto.ErrCodeInternal {
				assert.NotContains(t, resp.Error.Message, "pq:")
			}
		})
	}
}

func TestBindingError(t *testing.T) {
	t.Run("should pass through non-validator errors", func(t *testing.T) {
		msg := bindingError(errors.New("unexpected EOF"))
		assert.Equal(t, "unexpected EOF", msg)
	})

	t.Run("should name the missing fields", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Request = httptest.NewRequest("POST", "/", strings.NewReader(`{}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var req ApproveLoanRequest
		err := c.ShouldBindJSON(&req)
		require.Error(t, err)
		assert.Contains(t, bindingError(err), "ApprovedBy is required")
	})

	t.Run("should name the failing validation tag", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Request = httptest.NewRequest("POST", "/", strings.NewReader(`{"approved_by":"not-a-uuid"}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var req ApproveLoanRequest
		err := c.ShouldBindJSON(&req)
		require.Error(t, err)
		assert.Contains(t, bindingError(err), "ApprovedBy must be a valid UUID")
	})
}
