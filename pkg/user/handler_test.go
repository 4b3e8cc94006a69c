package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing username",
			body:       `{"email":"a@example.com","password":"supersecretpassword","role":"dispatcher"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "short password",
			body:       `{"username":"abc","email":"a@example.com","password":"short","role":"dispatcher"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid role",
			body:       `{"username":"abc","email":"a@example.com","password":"supersecretpassword","role":"owner"}`,
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
	router.Mount("/users", h.AdminRoutes())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, r)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetUser_InvalidID(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/users", h.AdminRoutes())

	r := httptest.NewRequest(http.MethodGet, "/users/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChangePassword_RequiresAuth(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	router := chi.NewRouter()
	router.Mount("/me", h.SelfServiceRoutes())

	r := httptest.NewRequest(http.MethodPost, "/me/password", strings.NewReader(`{"current_password":"a","new_password":"supersecretpassword"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
