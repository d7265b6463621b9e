package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
)

func signToken(claims auth.Claims, secret string) (string, error) {
	header, err := json.Marshal(auth.Header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(unsigned))
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func TestRequireAuth(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Professional-Id")
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAuth(auth.Verifier{Secret: "s3cret"})(next)

	token, err := signToken(auth.Claims{Sub: "u1", ProfessionalID: "pro-1", Role: "professional", Exp: time.Now().Add(time.Hour).Unix()}, "s3cret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"public route", "/api/v1/public/slots", "", http.StatusNoContent},
		{"health", "/healthz", "", http.StatusNoContent},
		{"missing token", "/api/v1/appointments", "", http.StatusUnauthorized},
		{"bad token", "/api/v1/appointments", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/v1/appointments", "Bearer " + token, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("X-Professional-Id", "spoofed")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
	if seen != "pro-1" {
		t.Fatalf("professional header = %q, want claims value", seen)
	}
}
