package dto

import (
	"net/http"
	"strings"
)

// Error codes exposed by the API. Domain error codes map onto these.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used for input that fails business validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for duplicate or already-processed resources
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState is used when an operation is invalid for the
	// resource's current lifecycle state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeExternal is used when an upstream dependency failed
	ErrCodeExternal = "ERR_EXTERNAL"
	// ErrCodeUnauthorized is used when tenant identification is missing
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusConflict,
	ErrCodeExternal:     http.StatusBadGateway,
	ErrCodeUnauthorized: http.StatusUnauthorized,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodeMapping maps domain error codes to API error codes
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"CONFLICT":             ErrCodeConflict,
	"INVALID_STATE":        ErrCodeInvalidState,
	"VALIDATION_FAILURE":   ErrCodeValidation,
	"EXTERNAL_FAILURE":     ErrCodeExternal,
	"ALREADY_EXISTS":       ErrCodeConflict,
	"CONCURRENCY_CONFLICT": ErrCodeConflict,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Domain validation codes (INVALID_VOLUME, INVALID_RATE, ...) collapse
// to the generic validation code; INVALID_STATE keeps its own mapping.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodeMapping[code]; ok {
		return apiCode
	}
	if strings.HasPrefix(code, "INVALID_") {
		return ErrCodeValidation
	}
	return code
}
