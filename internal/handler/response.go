package handler

// RESPONSE HELPERS:
// Every JSON error from the API has the same shape:
//
//	{"error": "not_found", "message": "task not found with id 42"}
//
// Validation errors also name the offending field:
//
//	{"error": "validation_error", "message": "description is required", "field": "description"}
//
// Pages cannot show JSON, so PageError writes a short plain-text body with
// the same status code instead.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/todolist/internal/apperror"
)

// ErrorResponse is the error body returned by every API endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// UnavailableReporter is told about every response that failed because
// storage was down. *metrics.Collector satisfies it.
type UnavailableReporter interface {
	StorageUnavailable()
}

// Responder writes JSON bodies and maps domain errors to status codes.
// It is shared by all handlers.
type Responder struct {
	logger   *slog.Logger
	reporter UnavailableReporter
}

// NewResponder creates a Responder. reporter may be nil.
func NewResponder(logger *slog.Logger, reporter UnavailableReporter) *Responder {
	return &Responder{logger: logger, reporter: reporter}
}

// writeJSON sends data with the given status code.
//
// Headers and status must be set before the body: once Encode writes, later
// header changes are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// classify maps err to an HTTP status and a machine-readable error type.
//
// errors.Is walks the whole chain, so a service error such as
// fmt.Errorf("creating task: %w", apperror.ValidationFailed(...)) still
// matches ErrValidation.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage returns the message safe to show a client. Unknown errors
// get a generic text: the raw error might contain SQL or file paths.
func publicMessage(err error) (message, field string) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message, appErr.Field
	}
	return "an internal error occurred", ""
}

// observe logs server-side failures and reports storage outages.
func (rs *Responder) observe(r *http.Request, status int, err error) {
	if status == http.StatusServiceUnavailable && rs.reporter != nil {
		rs.reporter.StorageUnavailable()
	}
	if status >= 500 {
		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		}
		if cause := apperror.CauseOf(err); cause != nil {
			attrs = append(attrs, slog.String("cause", cause.Error()))
		}
		rs.logger.Error("request failed", attrs...)
	}
}

// Error writes err as a JSON ErrorResponse.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	rs.observe(r, status, err)

	message, field := publicMessage(err)
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message, Field: field})
}

// PageError writes err as plain text for a browser page.
// A storage outage reads "Service unavailable: storage unavailable while ...".
func (rs *Responder) PageError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := classify(err)
	rs.observe(r, status, err)

	message, _ := publicMessage(err)
	http.Error(w, http.StatusText(status)+": "+message, status)
}

// Unauthorized answers a request that reached an API handler without a
// signed-in user.
func (rs *Responder) Unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "valid authentication required",
	})
}
