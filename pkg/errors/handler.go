package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed API request
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler renders errors as JSON responses and logs them once
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler. In debug mode responses carry
// stack traces and the text of unclassified errors.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes err as an error response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	appErr := GetAppError(err)
	if appErr == nil {
		appErr = NewInternalError("An internal error occurred").WithCause(err)
		if h.debug {
			appErr.Message = err.Error()
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	requestID := r.Header.Get("X-Request-ID")

	h.log(r, appErr, status, requestID)
	h.write(w, status, h.response(appErr, requestID))
}

func (h *ErrorHandler) response(appErr *AppError, requestID string) ErrorResponse {
	resp := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		RequestID: requestID,
	}
	if len(appErr.Details) > 0 || (h.debug && appErr.StackTrace != "") {
		resp.Details = make(map[string]interface{}, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			resp.Details[k] = v
		}
		if h.debug && appErr.StackTrace != "" {
			resp.Details["stack_trace"] = appErr.StackTrace
		}
	}
	return resp
}

// log picks the level from the status: server faults are errors, client faults warnings
func (h *ErrorHandler) log(r *http.Request, appErr *AppError, status int, requestID string) {
	fields := []zap.Field{
		zap.String("error_type", string(appErr.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	if len(appErr.Details) > 0 {
		fields = append(fields, zap.Any("details", appErr.Details))
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(appErr.Message, fields...)
		return
	}
	h.logger.Warn(appErr.Message, fields...)
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware turns panics in later handlers into INTERNAL responses
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
