package user

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

// Handler serves the account-management HTTP API: admin-only account
// provisioning/role changes, and self-service password/2FA endpoints.
type Handler struct {
	svc    *Service
	audit  *audit.Writer
	logger *slog.Logger
}

// NewHandler creates a user Handler.
func NewHandler(svc *Service, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, audit: auditWriter, logger: logger}
}

// AdminRoutes returns a chi.Router with admin-only account management
// mounted. The caller is responsible for wrapping it in auth.RequireRole.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/role", h.handleUpdateRole)
	r.Delete("/{id}", h.handleDelete)
	return r
}

// SelfServiceRoutes returns a chi.Router for the caller's own account.
func (h *Handler) SelfServiceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/password", h.handleChangePassword)
	r.Post("/totp/enroll", h.handleBeginTOTPEnrollment)
	r.Post("/totp/confirm", h.handleConfirmTOTPEnrollment)
	r.Post("/totp/disable", h.handleDisableTOTP)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	after, _ := json.Marshal(u)
	h.audit.LogFromRequest(r, actorID(r), "create_user", "user", u.ID, nil, after)

	httpserver.Respond(w, http.StatusCreated, u)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, u)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.svc.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	detail, _ := json.Marshal(map[string]string{"role": req.Role})
	h.audit.LogFromRequest(r, actorID(r), "update_user_role", "user", id, nil, detail)

	httpserver.Respond(w, http.StatusOK, u)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, actorID(r), "delete_user", "user", id, nil, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	var req ChangePasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.ChangePassword(r.Context(), id.UserID, req); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, id.UserID, "change_password", "user", id.UserID, nil, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (h *Handler) handleBeginTOTPEnrollment(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	resp, err := h.svc.BeginTOTPEnrollment(r.Context(), id.UserID, id.Username)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleConfirmTOTPEnrollment(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	var req ConfirmTOTPRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.ConfirmTOTPEnrollment(r.Context(), id.UserID, req); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, id.UserID, "enable_totp", "user", id.UserID, nil, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "two-factor authentication enabled"})
}

func (h *Handler) handleDisableTOTP(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	var req DisableTOTPRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.DisableTOTP(r.Context(), id.UserID, req); err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}

	h.audit.LogFromRequest(r, id.UserID, "disable_totp", "user", id.UserID, nil, nil)

	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "two-factor authentication disabled"})
}

func actorID(r *http.Request) uuid.UUID {
	if id := auth.FromContext(r.Context()); id != nil {
		return id.UserID
	}
	return uuid.Nil
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation_error", "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}
