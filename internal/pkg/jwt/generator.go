package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Generate creates a signed token with the given purpose and extra data.
// Returns the signed token and its JTI.
func (g *Generator) Generate(identityID int64, purpose string, ttl time.Duration, extraData map[string]interface{}) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}

	now := time.Now()
	jti := ulid.Make().String()
	if ttl <= 0 {
		ttl = g.Ttl
	}

	claims := &Claims{
		IdentityID:     identityID,
		SessionPurpose: purpose,
		ExtraData:      extraData,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   fmt.Sprintf("%d", identityID),
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken generates a standard dashboard access token.
func (g *Generator) GenerateAccessToken(identityID int64, device string) (string, string, error) {
	return g.Generate(identityID, "access", 0, map[string]interface{}{
		"device": device,
	})
}

// GenerateInvitationToken generates the token embedded in organization invitation
// links. It carries the organization and invitation ids so the accept flow can
// resolve the pending record without extra lookups.
func (g *Generator) GenerateInvitationToken(orgID, invitationID int64, email, role string) (string, string, error) {
	return g.Generate(0, "invitation", 7*24*time.Hour, map[string]interface{}{
		"organization_id": orgID,
		"invitation_id":   invitationID,
		"email":           email,
		"role":            role,
	})
}
