package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if _, err := uuid.Parse(gotID); err != nil {
		t.Errorf("expected a generated UUID in context, got %q", gotID)
	}
	if w.Header().Get("X-Request-ID") != gotID {
		t.Errorf("response header = %q, want %q", w.Header().Get("X-Request-ID"), gotID)
	}
}

func TestRequestID_PreservesValidIncoming(t *testing.T) {
	incoming := uuid.New().String()
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", incoming)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if gotID != incoming {
		t.Errorf("request ID = %q, want %q", gotID, incoming)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	tests := map[string]string{
		"X-Content-Type-Options":   "nosniff",
		"X-Frame-Options":          "DENY",
		"Referrer-Policy":          "strict-origin-when-cross-origin",
		"Content-Security-Policy":  "default-src 'self'",
		"Strict-Transport-Security": "max-age=63072000; includeSubDomains",
	}
	for header, want := range tests {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequireCSRF(t *testing.T) {
	okHandler := RequireCSRF(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("GET passes without CSRF token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		okHandler.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("POST rejected without cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		w := httptest.NewRecorder()
		okHandler.ServeHTTP(w, r)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("POST rejected on header/cookie mismatch", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc123"})
		r.Header.Set(CSRFHeaderName, "different-token")
		w := httptest.NewRecorder()
		okHandler.ServeHTTP(w, r)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("POST passes with matching header and cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc123"})
		r.Header.Set(CSRFHeaderName, "abc123")
		w := httptest.NewRecorder()
		okHandler.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestIssueAndClearCSRFCookie(t *testing.T) {
	w := httptest.NewRecorder()
	token := IssueCSRFCookie(w)
	if token == "" {
		t.Fatal("expected a non-empty CSRF token")
	}

	resp := w.Result()
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookieName && c.Value == token {
			found = true
		}
	}
	if !found {
		t.Error("expected issued cookie to carry the returned token")
	}

	w2 := httptest.NewRecorder()
	ClearCSRFCookie(w2)
	resp2 := w2.Result()
	for _, c := range resp2.Cookies() {
		if c.Name == csrfCookieName && c.MaxAge != -1 {
			t.Errorf("MaxAge = %d, want -1", c.MaxAge)
		}
	}
}
