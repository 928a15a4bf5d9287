package jwt

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Verifier struct {
	pub      *rsa.PublicKey
	issuer   string
	audience string
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub:      pub,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses and validates a token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.pub, nil
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

func (v *Verifier) verifyWithPurpose(tokenString, purpose string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionPurpose != purpose {
		return nil, fmt.Errorf("token purpose mismatch: expected %s, got %s", purpose, claims.SessionPurpose)
	}
	return claims, nil
}

// VerifyAccessToken validates a dashboard access token.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	return v.verifyWithPurpose(tokenString, "access")
}

// VerifyInvitationToken validates an organization invitation token.
func (v *Verifier) VerifyInvitationToken(tokenString string) (*Claims, error) {
	return v.verifyWithPurpose(tokenString, "invitation")
}
