package stats

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tracetrack/tracetrack/internal/auth"
	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// Handler serves the statistics dashboard HTTP API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a stats Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes returns a chi.Router with the statistics route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleGet)
	return r
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
		return
	}

	view, err := h.svc.ForRole(r.Context(), id.Role)
	if err != nil {
		httpserver.RespondDomainError(w, r, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, view)
}
