package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inkmuse/atelier/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

// ValidateGenerationEvent validates generation event requests
func (vm *ValidationMiddleware) ValidateGenerationEvent() gin.HandlerFunc {
	return vm.validateRequestBody("generation-event")
}

// ValidateFeedback validates feedback submission requests
func (vm *ValidationMiddleware) ValidateFeedback() gin.HandlerFunc {
	return vm.validateRequestBody("feedback")
}

// ValidateFeedbackBatch validates batch feedback requests
func (vm *ValidationMiddleware) ValidateFeedbackBatch() gin.HandlerFunc {
	return vm.validateRequestBody("feedback-batch")
}

// validateRequestBody creates a middleware that validates request body against a schema
func (vm *ValidationMiddleware) validateRequestBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only validate for methods that have request bodies
		if c.Request.Method == "GET" || c.Request.Method == "DELETE" {
			c.Next()
			return
		}

		// Read request body
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			vm.sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		// Restore request body for downstream handlers
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		if len(bodyBytes) == 0 {
			vm.sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		// Validate JSON format first
		var jsonData interface{}
		if err := json.Unmarshal(bodyBytes, &jsonData); err != nil {
			vm.sendValidationError(c, "INVALID_JSON", "Request body must be valid JSON", map[string]interface{}{
				"parseError": err.Error(),
			})
			return
		}

		// Validate against schema
		result := vm.validator.ValidateJSONString(schemaName, string(bodyBytes))
		if !result.Valid {
			apiError := result.ToAPIError()
			if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
				errorObj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
				errorObj["requestId"] = uuid.New().String()
				errorObj["path"] = c.Request.URL.Path
				errorObj["method"] = c.Request.Method
			}

			c.JSON(http.StatusBadRequest, apiError)
			c.Abort()
			return
		}

		// Store validated data in context for downstream handlers
		c.Set("validatedBody", jsonData)
		c.Next()
	}
}

// ValidateQueryParams validates query parameters
func (vm *ValidationMiddleware) ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		errors := make([]validation.ValidationError, 0)

		if limit := c.Query("limit"); limit != "" {
			if !vm.isValidPositiveInt(limit, 1, 1000) {
				errors = append(errors, validation.ValidationError{
					Field:   "limit",
					Message: "Limit must be an integer between 1 and 1000",
					Code:    "INVALID_QUERY_PARAM",
					Value:   limit,
				})
			}
		}

		if offset := c.Query("offset"); offset != "" {
			if !vm.isValidNonNegativeInt(offset) {
				errors = append(errors, validation.ValidationError{
					Field:   "offset",
					Message: "Offset must be a non-negative integer",
					Code:    "INVALID_QUERY_PARAM",
					Value:   offset,
				})
			}
		}

		if userID := c.Param("userId"); userID != "" {
			if !vm.isValidUserID(userID) {
				errors = append(errors, validation.ValidationError{
					Field:   "userId",
					Message: "User ID must contain only alphanumeric characters, hyphens, and underscores",
					Code:    "INVALID_PATH_PARAM",
					Value:   userID,
				})
			}
		}

		if objectID := c.Param("objectId"); objectID != "" {
			if !vm.isValidUUID(objectID) {
				errors = append(errors, validation.ValidationError{
					Field:   "objectId",
					Message: "Object ID must be a valid UUID",
					Code:    "INVALID_PATH_PARAM",
					Value:   objectID,
				})
			}
		}

		if kind := c.Query("kind"); kind != "" {
			validKinds := []string{"style_pack", "motif", "glossary", "rule", "fewshot"}
			if !vm.isValidEnum(kind, validKinds) {
				errors = append(errors, validation.ValidationError{
					Field:   "kind",
					Message: fmt.Sprintf("Kind must be one of: %s", strings.Join(validKinds, ", ")),
					Code:    "INVALID_QUERY_PARAM",
					Value:   kind,
				})
			}
		}

		if status := c.Query("status"); status != "" {
			validStatuses := []string{"active", "deprecated"}
			if !vm.isValidEnum(status, validStatuses) {
				errors = append(errors, validation.ValidationError{
					Field:   "status",
					Message: fmt.Sprintf("Status must be one of: %s", strings.Join(validStatuses, ", ")),
					Code:    "INVALID_QUERY_PARAM",
					Value:   status,
				})
			}
		}

		if signal := c.Query("signal"); signal != "" {
			validSignals := []string{"kept", "edited", "regenerated", "exported", "favorited", "reported"}
			if !vm.isValidEnum(signal, validSignals) {
				errors = append(errors, validation.ValidationError{
					Field:   "signal",
					Message: fmt.Sprintf("Signal must be one of: %s", strings.Join(validSignals, ", ")),
					Code:    "INVALID_QUERY_PARAM",
					Value:   signal,
				})
			}
		}

		if len(errors) > 0 {
			vm.sendValidationErrors(c, errors)
			return
		}

		c.Next()
	}
}

// ValidateHeaders validates required headers
func (vm *ValidationMiddleware) ValidateHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		errors := make([]validation.ValidationError, 0)

		// Validate Content-Type for POST/PUT requests
		if c.Request.Method == "POST" || c.Request.Method == "PUT" || c.Request.Method == "PATCH" {
			contentType := c.GetHeader("Content-Type")
			if contentType == "" {
				errors = append(errors, validation.ValidationError{
					Field:   "Content-Type",
					Message: "Content-Type header is required",
					Code:    "MISSING_HEADER",
				})
			} else if !strings.Contains(contentType, "application/json") {
				errors = append(errors, validation.ValidationError{
					Field:   "Content-Type",
					Message: "Content-Type must be application/json",
					Code:    "INVALID_HEADER",
					Value:   contentType,
				})
			}
		}

		// Validate Accept header if present
		if accept := c.GetHeader("Accept"); accept != "" {
			if !strings.Contains(accept, "application/json") && !strings.Contains(accept, "*/*") {
				errors = append(errors, validation.ValidationError{
					Field:   "Accept",
					Message: "Accept header must include application/json",
					Code:    "INVALID_HEADER",
					Value:   accept,
				})
			}
		}

		if len(errors) > 0 {
			vm.sendValidationErrors(c, errors)
			return
		}

		c.Next()
	}
}

// Helper validation functions
func (vm *ValidationMiddleware) isValidPositiveInt(value string, min, max int) bool {
	var num int
	if _, err := fmt.Sscanf(value, "%d", &num); err != nil {
		return false
	}
	return num >= min && num <= max
}

func (vm *ValidationMiddleware) isValidNonNegativeInt(value string) bool {
	var num int
	if _, err := fmt.Sscanf(value, "%d", &num); err != nil {
		return false
	}
	return num >= 0
}

func (vm *ValidationMiddleware) isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func (vm *ValidationMiddleware) isValidUserID(value string) bool {
	if len(value) == 0 || len(value) > 255 {
		return false
	}
	for _, char := range value {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return false
		}
	}
	return true
}

func (vm *ValidationMiddleware) isValidEnum(value string, validValues []string) bool {
	for _, valid := range validValues {
		if value == valid {
			return true
		}
	}
	return false
}

// Error response helpers
func (vm *ValidationMiddleware) sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   message,
			"details":   details,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"requestId": uuid.New().String(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		},
	}

	c.JSON(http.StatusBadRequest, errorResponse)
	c.Abort()
}

func (vm *ValidationMiddleware) sendValidationErrors(c *gin.Context, errors []validation.ValidationError) {
	errorDetails := make(map[string]interface{})
	errorDetails["validationErrors"] = errors

	// Group errors by field for easier client handling
	fieldErrors := make(map[string][]string)
	for _, err := range errors {
		if err.Field != "" {
			fieldErrors[err.Field] = append(fieldErrors[err.Field], err.Message)
		}
	}

	if len(fieldErrors) > 0 {
		errorDetails["fieldErrors"] = fieldErrors
	}

	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":      "VALIDATION_ERROR",
			"message":   "Request validation failed",
			"details":   errorDetails,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"requestId": uuid.New().String(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		},
	}

	c.JSON(http.StatusBadRequest, errorResponse)
	c.Abort()
}
