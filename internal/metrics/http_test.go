package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/chat", "/api/chat"},
		{"/api/usage", "/api/usage"},
		{
			"/api/users/a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			"/api/users/{id}",
		},
		{
			"/api/users/a1b2c3d4-e5f6-7890-abcd-ef1234567890/sessions/00000000-0000-0000-0000-000000000000",
			"/api/users/{id}/sessions/{id}",
		},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddlewarePreservesResponse(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status to pass through, got %d", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("expected body to pass through, got %q", rec.Body.String())
	}
}
