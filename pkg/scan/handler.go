package scan

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tracetrack/tracetrack/internal/audit"
	"github.com/tracetrack/tracetrack/internal/auth"
	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// Handler serves the scan pipeline HTTP API.
type Handler struct {
	svc    *Service
	audit  *audit.Writer
	logger *slog.Logger
}

// NewHandler creates a scan Handler.
func NewHandler(svc *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, audit: auditWriter, logger: logger}
}

// Routes returns a chi.Router with scan routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parent", h.handleScanParent)
	r.Post("/child", h.handleScanChild)
	r.Post("/finish", h.handleFinish)
	return r
}

func (h *Handler) handleScanParent(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	var req ScanRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sc, err := h.svc.ScanParent(r.Context(), id.UserID, req.QRID, req.ResponseTimeMS)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, sc)
}

func (h *Handler) handleScanChild(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	var req ScanRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sc, err := h.svc.ScanChild(r.Context(), id.UserID, req.QRID, req.ResponseTimeMS)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, sc)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	result, err := h.svc.Finish(r.Context(), id.UserID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	after, _ := json.Marshal(result)
	h.audit.LogFromRequest(r, id.UserID, "finish_scanning", "scan_session", uuid.Nil, nil, after)

	httpserver.Respond(w, http.StatusOK, result)
}
