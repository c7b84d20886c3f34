package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	b, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if a == b {
		t.Error("two tokens should never collide")
	}
	if len(a) < TokenLength {
		t.Errorf("token suspiciously short: %d chars", len(a))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   bool
	}{
		{"matching token", "tok-abc", "tok-abc", true},
		{"mismatched token", "tok-abc", "tok-xyz", false},
		{"missing header", "tok-abc", "", false},
		{"missing cookie", "", "tok-abc", false},
		{"both missing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(HeaderName, tt.header)
			}

			if got := Validate(req); got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtect(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Protect(next)

	t.Run("safe methods pass without a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("unsafe method without token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON error body, got Content-Type %q", ct)
		}
	})

	t.Run("unsafe method with matching token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok-1"})
		req.Header.Set(HeaderName, "tok-1")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestSetTokenCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := SetTokenCookie(rec, true); err != nil {
		t.Fatalf("SetTokenCookie() error: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName {
		t.Errorf("cookie name = %q, want %q", c.Name, CookieName)
	}
	if c.HttpOnly {
		t.Error("CSRF cookie must be readable by the frontend")
	}
	if !c.Secure {
		t.Error("expected Secure cookie")
	}
	if c.Value == "" {
		t.Error("expected a non-empty token")
	}
}
