package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(rpm int, now *time.Time) *Limiter {
	rl := NewLimiter(Config{RequestsPerMinute: rpm, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return *now }
	return rl
}

func TestLimiter_Allow(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := newTestLimiter(3, &now)
	defer rl.Stop()

	for i := 1; i <= 3; i++ {
		if !rl.Allow("user-1") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("user-1") {
		t.Error("fourth request in the window should be refused")
	}
	if !rl.Allow("user-2") {
		t.Error("keys are limited independently")
	}
	if rl.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", rl.Rejected())
	}

	now = now.Add(time.Minute)
	if !rl.Allow("user-1") {
		t.Error("a new window should allow requests again")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := newTestLimiter(10, &now)
	defer rl.Stop()

	rl.Allow("old")
	now = now.Add(3 * time.Minute)
	rl.Allow("fresh")

	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", n)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, &now)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string {
		return r.Header.Get("X-User")
	}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	tests := []struct {
		user string
		want int
	}{
		{"a", http.StatusCreated},
		{"a", http.StatusTooManyRequests},
		{"b", http.StatusCreated},
		{"", http.StatusCreated},
		{"", http.StatusCreated},
	}
	for i, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
		req.Header.Set("X-User", tt.user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("request %d (%q): status = %d, want %d", i, tt.user, rec.Code, tt.want)
		}
		if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("request %d: missing Retry-After", i)
		}
	}
}
