package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	maxMediaIDLength   = 255
	maxSearchLength    = 1000
	defaultPollTimeout = 25
	maxPollTimeout     = 60
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondJSON writes v as the response body
func (ms *ControlServer) respondJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ms.logger.WithError(err).Debug("Failed to encode response")
	}
}

// respondWithValidationError sends a structured validation error response
func (ms *ControlServer) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	ms.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}

	ms.respondJSON(w, result)
}

// respondWithError sends a structured error response
func (ms *ControlServer) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := ms.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}

	ms.respondJSON(w, response)
}

// validateMediaID checks a media id taken from the URL path
func (ms *ControlServer) validateMediaID(id string) *ValidationError {
	if id == "" {
		return &ValidationError{
			Field:   "media_id",
			Message: "Media ID cannot be empty",
			Code:    "EMPTY_MEDIA_ID",
		}
	}

	if len(id) > maxMediaIDLength {
		return &ValidationError{
			Field:   "media_id",
			Message: "Media ID too long (max 255 characters)",
			Code:    "MEDIA_ID_TOO_LONG",
		}
	}

	if strings.ContainsAny(id, "\x00/\\") {
		return &ValidationError{
			Field:   "media_id",
			Message: "Media ID contains invalid characters",
			Code:    "INVALID_MEDIA_ID_CHARACTERS",
		}
	}

	return nil
}

// validateSearchQuery validates search query parameters
func (ms *ControlServer) validateSearchQuery(query string) *ValidationError {
	if len(query) > maxSearchLength {
		return &ValidationError{
			Field:   "q",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "q",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validatePosition parses a seek position in milliseconds
func (ms *ControlServer) validatePosition(value string) (int64, *ValidationError) {
	if value == "" {
		return 0, &ValidationError{
			Field:   "position",
			Message: "Position is required",
			Code:    "MISSING_POSITION",
		}
	}

	position, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, &ValidationError{
			Field:   "position",
			Message: "Position must be a valid integer",
			Code:    "INVALID_POSITION_FORMAT",
		}
	}

	if position < 0 {
		return 0, &ValidationError{
			Field:   "position",
			Message: "Position cannot be negative",
			Code:    "INVALID_POSITION_VALUE",
		}
	}

	return position, nil
}

// validatePollTimeout parses the long-poll timeout in seconds
func (ms *ControlServer) validatePollTimeout(value string) (int, *ValidationError) {
	if value == "" {
		return defaultPollTimeout, nil
	}

	timeout, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ValidationError{
			Field:   "timeout",
			Message: "Timeout must be a valid integer",
			Code:    "INVALID_TIMEOUT_FORMAT",
		}
	}

	if timeout <= 0 || timeout > maxPollTimeout {
		return 0, &ValidationError{
			Field:   "timeout",
			Message: "Timeout must be between 1 and 60 seconds",
			Code:    "INVALID_TIMEOUT_VALUE",
		}
	}

	return timeout, nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	return input
}
