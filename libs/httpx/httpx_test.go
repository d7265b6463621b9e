package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChainOrderAndRequestID(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	var seenID string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), mw("a"), WithRequestID, WithAccessLog(slog.New(slog.NewTextHandler(io.Discard, nil))), mw("b"))

	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(rw, req)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected middleware order: %v", order)
	}
	if seenID != "req-42" || rw.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id to propagate, got %q", seenID)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestWriteJSON(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteJSON(rw, http.StatusCreated, map[string]string{"id": "a"})
	if rw.Code != http.StatusCreated || rw.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response: %d %s", rw.Code, rw.Header().Get("Content-Type"))
	}
	if rw.Body.String() != `{"id":"a"}` {
		t.Fatalf("unexpected body: %s", rw.Body.String())
	}
}

func TestRateLimiterKeysOnHeader(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).WithKey(HeaderOrIP("X-User-Id"))
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) *httptest.ResponseRecorder {
		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if user != "" {
			req.Header.Set("X-User-Id", user)
		}
		h.ServeHTTP(rw, req)
		return rw
	}

	if rw := send("u1"); rw.Code != http.StatusOK {
		t.Fatalf("first u1 request = %d", rw.Code)
	}
	if rw := send("u2"); rw.Code != http.StatusOK {
		t.Fatalf("u2 shares a bucket with u1: %d", rw.Code)
	}
	if rw := send(""); rw.Code != http.StatusOK {
		t.Fatalf("anonymous request = %d", rw.Code)
	}
	rw := send("u1")
	if rw.Code != http.StatusTooManyRequests || rw.Header().Get("Retry-After") == "" {
		t.Fatalf("second u1 request = %d retry-after %q", rw.Code, rw.Header().Get("Retry-After"))
	}
}

func TestWithCORS(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://book.example.com", "https://*.salons.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         time.Minute,
	}))

	cases := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{name: "exact", method: http.MethodGet, origin: "https://book.example.com", wantStatus: http.StatusOK, wantOrigin: "https://book.example.com"},
		{name: "subdomain", method: http.MethodGet, origin: "https://dana.salons.example.com", wantStatus: http.StatusOK, wantOrigin: "https://dana.salons.example.com"},
		{name: "wildcard needs a subdomain", method: http.MethodGet, origin: "https://salons.example.com", wantStatus: http.StatusOK},
		{name: "unknown origin", method: http.MethodGet, origin: "https://evil.test", wantStatus: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, origin: "https://book.example.com", preflight: true, wantStatus: http.StatusNoContent, wantOrigin: "https://book.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/appointments", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tc.wantOrigin, got)
			}
			if tc.wantOrigin != "" {
				if rec.Header().Get("Access-Control-Expose-Headers") != "Retry-After" || rec.Header().Get("Access-Control-Max-Age") != "60" {
					t.Fatalf("unexpected headers: %v", rec.Header())
				}
			}
		})
	}
}
