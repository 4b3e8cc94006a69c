package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracetrack/tracetrack/internal/httpserver"
)

// Handler serves the admin-only audit log listing.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates an audit log Handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Routes returns a chi.Router with audit log routes mounted. Callers must
// wrap this with an admin-only RBAC middleware before mounting.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

// logRow mirrors the audit_log table for JSON serialization.
type logRow struct {
	ID         string  `json:"id"`
	RequestID  string  `json:"request_id"`
	ActorID    *string `json:"actor_id,omitempty"`
	Action     string  `json:"action"`
	TargetKind *string `json:"target_kind,omitempty"`
	TargetID   *string `json:"target_id,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT id::text, request_id::text, actor_id::text, action, target_kind, target_id::text,
		       to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM audit_log
		ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2`, params.PageSize, params.Offset)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (logRow, error) {
		var e logRow
		err := row.Scan(&e.ID, &e.RequestID, &e.ActorID, &e.Action, &e.TargetKind, &e.TargetID, &e.OccurredAt)
		return e, err
	})
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to read audit log")
		return
	}

	var total int
	if err := h.pool.QueryRow(r.Context(), `SELECT count(*) FROM audit_log`).Scan(&total); err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to count audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(entries, params, total))
}
