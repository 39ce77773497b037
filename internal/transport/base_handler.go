package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/pkg/logger"
)

const maxJSONBody = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error envelope for a status without a domain error behind it.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	errType := apperrors.ErrorTypeInternal
	code := apperrors.ErrorCode("INTERNAL_ERROR")
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		errType, code = apperrors.ErrorTypeValidation, apperrors.ErrCodeValidationFailed
	case http.StatusUnauthorized:
		errType, code = apperrors.ErrorTypeUnauthorized, apperrors.ErrCodeInvalidToken
	case http.StatusForbidden:
		errType, code = apperrors.ErrorTypeForbidden, apperrors.ErrCodeUnauthorizedAccess
	case http.StatusNotFound:
		errType, code = apperrors.ErrorTypeNotFound, "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		errType, code = apperrors.ErrorTypeValidation, "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		errType, code = "RATE_LIMITED", "RATE_LIMITED"
	}

	h.writeAppError(w, &apperrors.AppError{Type: errType, Code: code, Message: message, StatusCode: status})
}

// HandleServiceError maps an AppError to its status and envelope; any other error becomes a generic 500.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.Logger.Error("service error", "type", appErr.Type, "code", appErr.Code, "error", err)
		}
		h.writeAppError(w, appErr)
		return
	}

	h.Logger.Error("unhandled service error", "error", err)
	h.writeAppError(w, apperrors.NewInternalError("internal server error", err))
}

func (h *BaseHandler) writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.WriteJSON(w, status, body)
}

// DecodeJSON decodes a bounded request body, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is required", apperrors.ErrCodeValidationFailed)
		}
		return apperrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err), apperrors.ErrCodeValidationFailed)
	}
	return nil
}

// Pagination reads limit/offset query parameters, defaulting to 20/0 and capping limit at 100.
func (h *BaseHandler) Pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
