package bag

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

// Handler serves the bag/link HTTP API.
type Handler struct {
	store  *Store
	audit  *audit.Writer
	logger *slog.Logger
}

// NewHandler creates a bag Handler.
func NewHandler(store *Store, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{store: store, audit: auditWriter, logger: logger}
}

// Routes returns a chi.Router with bag and link routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{qr}", h.handleGet)
	r.Get("/{qr}/children", h.handleListChildren)
	r.Delete("/{qr}", h.handleDelete)
	r.Post("/link", h.handleLink)
	r.Post("/unlink", h.handleUnlink)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	var ownerID *uuid.UUID
	if id != nil {
		ownerID = &id.UserID
	}

	b, err := h.store.Create(r.Context(), req.QRID, req.Type, req.Notes, ownerID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	after, _ := json.Marshal(b)
	actor := uuid.Nil
	if id != nil {
		actor = id.UserID
	}
	h.audit.LogFromRequest(r, actor, "create_bag", "bag", b.ID, nil, after)

	httpserver.Respond(w, http.StatusCreated, b)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetByQRID(r.Context(), chi.URLParam(r, "qr"))
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, b)
}

func (h *Handler) handleListChildren(w http.ResponseWriter, r *http.Request) {
	parent, err := h.store.GetByQRID(r.Context(), chi.URLParam(r, "qr"))
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	if parent.Type != TypeParent {
		httpserver.RespondError(w, http.StatusBadRequest, "validation_error", "bag is not a parent")
		return
	}

	children, err := h.store.ChildrenOf(r.Context(), parent.ID)
	if err != nil {
		h.logger.Error("listing children", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "fatal_error", "failed to list children")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"items": children})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetByQRID(r.Context(), chi.URLParam(r, "qr"))
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	if err := h.store.Delete(r.Context(), b.ID); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	before, _ := json.Marshal(b)
	id := auth.FromContext(r.Context())
	actor := uuid.Nil
	if id != nil {
		actor = id.UserID
	}
	h.audit.LogFromRequest(r, actor, "delete_bag", "bag", b.ID, before, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	parent, err := h.store.GetByQRID(r.Context(), req.ParentQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	child, err := h.store.GetByQRID(r.Context(), req.ChildQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	if parent.Type != TypeParent || child.Type != TypeChild {
		httpserver.RespondError(w, http.StatusBadRequest, "validation_error", "link requires a parent bag and a child bag")
		return
	}

	id := auth.FromContext(r.Context())
	var creatorID *uuid.UUID
	if id != nil {
		creatorID = &id.UserID
	}

	if err := h.store.Link(r.Context(), parent.ID, child.ID, creatorID); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	actor := uuid.Nil
	if id != nil {
		actor = id.UserID
	}
	detail, _ := json.Marshal(map[string]string{"parent_qr_id": parent.QRID, "child_qr_id": child.QRID})
	h.audit.LogFromRequest(r, actor, "link_bag", "link", child.ID, nil, detail)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "linked"})
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	parent, err := h.store.GetByQRID(r.Context(), req.ParentQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	child, err := h.store.GetByQRID(r.Context(), req.ChildQRID)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	if err := h.store.Unlink(r.Context(), parent.ID, child.ID); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	id := auth.FromContext(r.Context())
	actor := uuid.Nil
	if id != nil {
		actor = id.UserID
	}
	detail, _ := json.Marshal(map[string]string{"parent_qr_id": parent.QRID, "child_qr_id": child.QRID})
	h.audit.LogFromRequest(r, actor, "unlink_bag", "link", child.ID, detail, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "unlinked"})
}
