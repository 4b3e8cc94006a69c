package bill

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

// Handler serves the bill assembly HTTP API.
type Handler struct {
	svc    *Service
	audit  *audit.Writer
	logger *slog.Logger
}

// NewHandler creates a bill Handler.
func NewHandler(svc *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, audit: auditWriter, logger: logger}
}

// Routes returns a chi.Router with bill routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/attach", h.handleAttach)
	r.Post("/{id}/detach", h.handleDetach)
	r.Post("/{id}/finalize", h.handleFinalize)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func actorID(r *http.Request) uuid.UUID {
	if id := auth.FromContext(r.Context()); id != nil {
		return id.UserID
	}
	return uuid.Nil
}

func billIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation_error", "invalid bill id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	var creatorID *uuid.UUID
	if id != nil {
		creatorID = &id.UserID
	}

	b, err := h.svc.Create(r.Context(), req, creatorID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	after, _ := json.Marshal(b)
	h.audit.LogFromRequest(r, actorID(r), "create_bill", "bill", b.ID, nil, after)

	httpserver.Respond(w, http.StatusCreated, b)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	billID, ok := billIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Get(r.Context(), billID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	billID, ok := billIDParam(w, r)
	if !ok {
		return
	}
	var req AttachRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.svc.AttachParent(r.Context(), billID, req.BagQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	detail, _ := json.Marshal(map[string]string{"bag_qr_id": req.BagQRID})
	h.audit.LogFromRequest(r, actorID(r), "attach_bill", "bill", billID, nil, detail)

	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) {
	billID, ok := billIDParam(w, r)
	if !ok {
		return
	}
	var req AttachRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.svc.DetachParent(r.Context(), billID, req.BagQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	detail, _ := json.Marshal(map[string]string{"bag_qr_id": req.BagQRID})
	h.audit.LogFromRequest(r, actorID(r), "detach_bill", "bill", billID, detail, nil)

	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	billID, ok := billIDParam(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Finalize(r.Context(), billID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	after, _ := json.Marshal(b)
	h.audit.LogFromRequest(r, actorID(r), "finalize_bill", "bill", billID, nil, after)

	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	billID, ok := billIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), billID); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, actorID(r), "delete_bill", "bill", billID, nil, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}
