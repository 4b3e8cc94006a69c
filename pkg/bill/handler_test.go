package bill

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCreateBill_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing bill_id",
			body:       `{"parent_bag_count":3}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "zero parent_bag_count",
			body:       `{"bill_id":"B-1","parent_bag_count":0}`,
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
	router.Mount("/bills", h.Routes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/bills", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetBill_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bills", h.Routes())

	r := httptest.NewRequest(http.MethodGet, "/bills/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAttachBill_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bills", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/bills/00000000-0000-0000-0000-000000000001/attach", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body = %s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}

func TestAttachBill_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/bills", h.Routes())

	r := httptest.NewRequest(http.MethodPost, "/bills/not-a-uuid/attach", strings.NewReader(`{"bag_qr_id":"QR1"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
