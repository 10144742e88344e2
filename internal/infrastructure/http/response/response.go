// Package response writes JSON bodies and typed error envelopes.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/alchemorsel/recipe-studio/pkg/errors"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// JSON writes data with status.
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// Error writes err as an ErrorResponse. Errors that are not an AppError are
// reported as internal errors without their message.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError("").WithCause(err)
	}

	status := appErr.StatusCode()
	requestID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	}

	if retry, ok := appErr.Metadata["retry_after_seconds"].(int); ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}
	JSON(w, logger, status, apperrors.ToErrorResponse(appErr, requestID))
}
