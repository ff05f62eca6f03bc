package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// bindingError turns a gin binding failure into a client-facing message.
// Validator failures list the offending fields; everything else (malformed
// JSON, type mismatches) passes through as-is.
func bindingError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	messages := make([]string, len(validationErrs))
	for i, fieldErr := range validationErrs {
		switch fieldErr.Tag() {
		case "required":
			messages[i] = fmt.Sprintf("%s is required", fieldErr.Field())
		case "uuid":
			messages[i] = fmt.Sprintf("%s must be a valid UUID", fieldErr.Field())
		case "min":
			messages[i] = fmt.Sprintf("%s must have at least %s", fieldErr.Field(), fieldErr.Param())
		default:
			messages[i] = fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag())
		}
	}
	return strings.Join(messages, "; ")
}

// parseUUID parses a UUID string, rejecting the nil UUID
func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("uuid cannot be nil")
	}
	return id, nil
}

// parseDateRange reads the from/to query parameters as YYYY-MM-DD dates
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be formatted as YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be formatted as YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to cannot be before from")
	}
	return from, to, nil
}

// parseIntQuery reads an integer query parameter with a default
func parseIntQuery(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
