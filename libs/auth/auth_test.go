package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func signHS256(claims Claims, secret string) (string, error) {
	headerJSON, err := json.Marshal(Header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	return unsigned + "." + hmacSHA256(unsigned, secret), nil
}

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{Sub: "user-1", ProfessionalID: "pro-1", Role: "professional", Iat: now.Unix(), Exp: now.Add(time.Hour).Unix()}
	token, err := signHS256(claims, "test-secret")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	parsed, err := VerifyHS256(token, "test-secret", now)
	if err != nil {
		t.Fatalf("VerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.ProfessionalID != claims.ProfessionalID || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := VerifyHS256(token, "wrong-secret", now); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
	if _, err := VerifyHS256(token, "test-secret", now.Add(2*time.Hour)); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifierUsesJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := Verifier{JWKS: NewJWKSClient(srv.URL, time.Minute), Now: func() time.Time { return now }}
	token, err := signRS256(Claims{Sub: "user-2", ProfessionalID: "pro-2", Exp: now.Add(time.Hour).Unix()}, key, "kid-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ProfessionalID != "pro-2" {
		t.Fatalf("claims = %+v", claims)
	}

	unknown, _ := signRS256(Claims{Sub: "user-2"}, key, "kid-9")
	if _, err := v.Verify(unknown); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
	hs, _ := signHS256(Claims{Sub: "user-3"}, "whatever")
	if _, err := v.Verify(hs); err == nil {
		t.Fatal("expected HS256 without a secret to fail")
	}
}

func TestVerifierRejectsUnsignedTokens(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`))
	v := Verifier{Secret: "s"}
	if _, err := v.Verify(header + "." + payload + "."); err == nil {
		t.Fatal("expected alg none to be rejected")
	}
}

func signRS256(claims Claims, key *rsa.PrivateKey, kid string) (string, error) {
	headerJSON, err := json.Marshal(Header{Alg: "RS256", Typ: "JWT", Kid: kid})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	hash := sha256.Sum256([]byte(unsigned))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
