package scan

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tracetrack/tracetrack/internal/audit"
	"github.com/tracetrack/tracetrack/internal/auth"
)

func authedRequest(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	ctx := auth.NewContext(r.Context(), &auth.Identity{UserID: uuid.New(), Role: auth.RoleDispatcher})
	return r.WithContext(ctx)
}

func TestScanParent_RequiresAuth(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/scan", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/scan/parent", strings.NewReader(`{"qr_id":"QR1"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestScanParent_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/scan", h.Routes())

	tests := []struct {
		name string
		body string
	}{
		{"missing qr_id", `{}`},
		{"negative response time", `{"qr_id":"QR1","response_time_ms":-5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authedRequest(http.MethodPost, "/scan/parent", tt.body)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
			}
		})
	}
}

func TestScanChild_RequiresAuth(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/scan", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/scan/child", strings.NewReader(`{"qr_id":"QR1"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestFinish_RequiresAuth(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/scan", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/scan/finish", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestFinish_EmptySession(t *testing.T) {
	svc := NewService(nil, nil, nil)
	auditWriter := audit.NewWriter(nil, slog.Default())
	h := NewHandler(svc, auditWriter, nil)
	router := chi.NewRouter()
	router.Mount("/scan", h.Routes())

	r := authedRequest(http.MethodPost, "/scan/finish", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusOK, w.Body.String())
	}
}
