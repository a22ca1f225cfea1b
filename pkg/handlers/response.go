package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
)

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindConnectionFailed:     http.StatusConflict,
	apperrors.KindQueryError:           http.StatusBadRequest,
	apperrors.KindTimeout:              http.StatusGatewayTimeout,
	apperrors.KindAuthenticationFailed: http.StatusUnauthorized,
	apperrors.KindNetworkError:         http.StatusBadGateway,
	apperrors.KindEncryptionError:      http.StatusInternalServerError,
	apperrors.KindStorageError:         http.StatusInternalServerError,
}

// errorStatus maps a service error to an HTTP status, error code and message.
func errorStatus(err error) (int, string, string) {
	var verr *datasource.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "VALIDATION_ERROR", verr.Message
	}
	if errors.Is(err, datasource.ErrUnsupportedEngine) {
		return http.StatusBadRequest, "UNSUPPORTED_ENGINE", err.Error()
	}

	var dbErr *apperrors.DatabaseError
	if errors.As(err, &dbErr) {
		status, ok := kindStatus[dbErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			status = http.StatusNotFound
		}
		return status, string(dbErr.Kind), dbErr.Message
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Connection not found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

// writeServiceError writes err using errorStatus. Server-side failures are logged.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status, code, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed",
			zap.Int("status", status),
			zap.String("error", logging.SanitizeError(err)),
		)
	} else {
		logger.Debug(op+" rejected",
			zap.Int("status", status),
			zap.String("code", code),
		)
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeBody decodes a JSON request body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
