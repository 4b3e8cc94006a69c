package bag

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCreateBag_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing qr_id",
			body:       `{"type":"parent"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid type",
			body:       `{"qr_id":"QR1","type":"grandchild"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "notes too long",
			body:       `{"qr_id":"QR1","type":"parent","notes":"` + strings.Repeat("x", 2001) + `"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid JSON",
			body:       `{bad}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bags", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/bags", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestLinkBag_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bags", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/bags/link", strings.NewReader(`{"parent_qr_id":""}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestUnlinkBag_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bags", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/bags/unlink", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}
