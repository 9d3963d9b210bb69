package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// General errors
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Container engine errors
	ErrorCodeContainerNotFound ErrorCode = "CONTAINER_NOT_FOUND"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineError       ErrorCode = "ENGINE_ERROR"

	// Storage gateway errors
	ErrorCodeBucketNotFound     ErrorCode = "BUCKET_NOT_FOUND"
	ErrorCodeBucketExists       ErrorCode = "BUCKET_EXISTS"
	ErrorCodeBucketAlreadyOwned ErrorCode = "BUCKET_ALREADY_OWNED"
	ErrorCodeBucketNotEmpty     ErrorCode = "BUCKET_NOT_EMPTY"
	ErrorCodeObjectNotFound     ErrorCode = "OBJECT_NOT_FOUND"
	ErrorCodeObjectTooLarge     ErrorCode = "OBJECT_TOO_LARGE"
	ErrorCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrorCodeGatewayError       ErrorCode = "GATEWAY_ERROR"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError processes an error and writes an appropriate HTTP response.
// Unclassified errors are reported as a generic internal error.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	e, ok := As(err)
	if !ok {
		h.logger.Error("unclassified error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
		e = Internal("internal server error", err)
	} else if e.Cause != nil {
		h.logger.Debug("error cause",
			zap.String("error_code", string(e.Code)),
			zap.Error(e.Cause),
			zap.String("request_id", requestID),
		)
	}

	h.writeError(w, KindToHTTPStatus(e.Kind), e.Kind, e.Code, e.Message, requestID)
}

// KindToHTTPStatus converts an error kind to an HTTP status code.
func KindToHTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus converts an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindToHTTPStatus(KindOf(err))
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.writeError(w, statusCode, kindForStatus(statusCode), errorCode, message, requestID)
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, kind Kind, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		Kind:      kind.String(),
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// WriteNotFound writes a not found response.
func (h *Handler) WriteNotFound(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, message, requestID)
}

// WriteInternalError writes an internal error response with a fixed message.
func (h *Handler) WriteInternalError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error", requestID)
}

// WriteRateLimited writes a 429 response. The caller sets Retry-After.
func (h *Handler) WriteRateLimited(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}

func kindForStatus(statusCode int) Kind {
	switch statusCode {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return KindUnavailable
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return KindInvalidInput
	default:
		return KindInternal
	}
}
