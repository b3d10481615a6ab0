package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yegors/inspect-ocr/pkg/logger"
)

func TestRecovererAnswersJSON(t *testing.T) {
	m := NewMiddleware(logger.Nop())
	h := m.RequestID(m.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	m := NewMiddleware(logger.Nop())
	h := m.CORS([]string{"http://allowed.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		origin string
		want   string
	}{
		{"http://allowed.example", "http://allowed.example"},
		{"http://other.example", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %q: allow-origin = %q, want %q", tt.origin, got, tt.want)
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("origin %q: status = %d", tt.origin, rec.Code)
		}
	}
}
