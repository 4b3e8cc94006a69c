package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tracetrack/tracetrack/internal/tterr"
)

// Respond writes v as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the envelope returned for non-validation errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondError writes a JSON error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}

// statusForKind maps a domain error kind to the HTTP status spec §7 assigns it.
func statusForKind(k tterr.Kind) int {
	switch k {
	case tterr.KindValidation:
		return http.StatusBadRequest
	case tterr.KindAuth:
		return http.StatusUnauthorized
	case tterr.KindAuthz:
		return http.StatusForbidden
	case tterr.KindNotFound:
		return http.StatusNotFound
	case tterr.KindConflict:
		return http.StatusConflict
	case tterr.KindRateLimit:
		return http.StatusTooManyRequests
	case tterr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError maps a domain error to the appropriate HTTP status and
// writes it as a JSON envelope. Unrecognized errors are logged at error level
// and reported to the client as an opaque 500 — internal details never leak.
func RespondDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	te, ok := tterr.As(err)
	if !ok {
		logger.Error("unhandled error",
			"error", err,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
		RespondError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}

	status := statusForKind(te.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("domain error",
			"kind", te.Kind,
			"error", te.Cause,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
		)
	}

	RespondError(w, status, string(te.Kind), te.Message)
}
