package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tests := []struct {
		name   string
		cfg    AuthConfig
		path   string
		header [2]string
		want   int
	}{
		{"disabled", AuthConfig{}, "/api/inventory", [2]string{}, http.StatusOK},
		{"missing token", AuthConfig{APIKey: "s3cret"}, "/api/inventory", [2]string{}, http.StatusUnauthorized},
		{"bearer ok", AuthConfig{APIKey: "s3cret"}, "/api/inventory", [2]string{"Authorization", "Bearer s3cret"}, http.StatusOK},
		{"x-api-key wrong", AuthConfig{APIKey: "s3cret"}, "/api/inventory", [2]string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"hash ok", AuthConfig{APIKeyHash: hash}, "/api/inventory", [2]string{"X-API-Key", "s3cret"}, http.StatusOK},
		{"hash wrong", AuthConfig{APIKeyHash: hash}, "/api/inventory", [2]string{"X-API-Key", "s3cre"}, http.StatusUnauthorized},
		{"public path", AuthConfig{APIKey: "s3cret", Public: []string{"/api/health"}}, "/api/health", [2]string{}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header[0] != "" {
				req.Header.Set(tt.header[0], tt.header[1])
			}
			rec := httptest.NewRecorder()
			Auth(tt.cfg)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS([]string{"https://shop.example"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS header for unknown origin")
	}
}

type countLimiter struct{ n int }

func (c *countLimiter) Allow(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	c.n++
	return c.n <= limit, nil
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(&countLimiter{}, 1, 10*time.Second)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "10" {
		t.Errorf("expected 429 with Retry-After 10, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("expected 203.0.113.9, got %s", got)
	}
}
