package auth

import (
	"time"
)

// Verifier accepts RS256 tokens whose kid resolves through JWKS and HS256 tokens signed
// with Secret. Either source may be unset.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
	Now    func() time.Time
}

func (v Verifier) Enabled() bool {
	return v.Secret != "" || v.JWKS != nil
}

func (v Verifier) Verify(token string) (*Claims, error) {
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	if header.Alg == "RS256" {
		if v.JWKS == nil || header.Kid == "" {
			return nil, ErrInvalidToken
		}
		pub, err := v.JWKS.Get(header.Kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return VerifyRS256(token, pub, now)
	}
	if header.Alg != "HS256" {
		return nil, ErrInvalidToken
	}
	return VerifyHS256(token, v.Secret, now)
}
